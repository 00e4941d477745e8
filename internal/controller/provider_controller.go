package controller

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"

	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/database"
	"providerdirectory_backend/pkg/utils/jwt"
	"providerdirectory_backend/pkg/utils/storage"
)

type ProviderInput struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

// sponsoredRank orders currently-sponsored providers by tier and re-checks
// sponsored_until on the read path. A lapsed row still carries
// is_sponsored=true until its next transition, so the raw flag alone would
// keep promoting it.
const sponsoredRank = "CASE WHEN is_sponsored = true AND (sponsored_until IS NULL OR sponsored_until > NOW()) THEN sponsorship_tier ELSE 0 END"

// ListProviders is the public directory listing, sponsored placements first.
func ListProviders(c *fiber.Ctx) error {
	var providers []model.Provider
	err := database.DB.
		Where("status = ?", model.ProviderStatusApproved).
		Order(sponsoredRank + " DESC").
		Order("name ASC").
		Find(&providers).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch providers",
		})
	}

	return c.JSON(providers)
}

// ListSponsoredProviders backs the homepage carousel: only providers whose
// entitlement is current right now.
func ListSponsoredProviders(c *fiber.Ctx) error {
	now := time.Now()

	var providers []model.Provider
	err := database.DB.
		Where("status = ? AND is_sponsored = true AND (sponsored_until IS NULL OR sponsored_until > ?)",
			model.ProviderStatusApproved, now).
		Order("sponsorship_tier DESC").
		Order("name ASC").
		Find(&providers).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch sponsored providers",
		})
	}

	return c.JSON(providers)
}

func GetProviderBySlug(c *fiber.Ctx) error {
	var provider model.Provider
	err := database.DB.
		Where("slug = ? AND status = ?", c.Params("slug"), model.ProviderStatusApproved).
		First(&provider).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Provider not found",
		})
	}

	return c.JSON(provider)
}

func ListMyProviders(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var providers []model.Provider
	if err := database.DB.Where("user_id = ?", claims.UserID).Find(&providers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch providers",
		})
	}

	return c.JSON(providers)
}

func CreateProvider(c *fiber.Ctx) error {
	input := new(ProviderInput)
	if err := c.BodyParser(input); err != nil || input.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	claims := c.Locals("user").(*jwt.Claims)

	provider := model.Provider{
		UserID:  claims.UserID,
		Name:    input.Name,
		Slug:    uniqueSlug(input.Name),
		Email:   input.Email,
		Phone:   input.Phone,
		Website: input.Website,
		Status:  model.ProviderStatusPending,
	}

	if err := database.DB.Create(&provider).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create provider",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(provider)
}

func UpdateProvider(c *fiber.Ctx) error {
	input := new(ProviderInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var provider model.Provider
	if err := database.DB.First(&provider, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Provider not found",
		})
	}

	if input.Name != "" && input.Name != provider.Name {
		provider.Name = input.Name
		provider.Slug = uniqueSlug(input.Name)
	}
	if input.Email != "" {
		provider.Email = input.Email
	}
	provider.Phone = input.Phone
	provider.Website = input.Website

	if err := database.DB.Save(&provider).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update provider",
		})
	}

	return c.JSON(provider)
}

func UploadProviderLogo(c *fiber.Ctx) error {
	var provider model.Provider
	if err := database.DB.First(&provider, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Provider not found",
		})
	}

	file, err := c.FormFile("logo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Logo file is required",
		})
	}

	url, err := storage.UploadLogo(file, provider.ID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := database.DB.Model(&provider).Update("logo_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save logo URL",
		})
	}

	return c.JSON(fiber.Map{
		"logo_url": url,
	})
}

// uniqueSlug appends a counter when the base slug is already taken.
func uniqueSlug(name string) string {
	base := slug.Make(name)
	candidate := base
	for i := 2; ; i++ {
		var count int64
		database.DB.Model(&model.Provider{}).Where("slug = ?", candidate).Count(&count)
		if count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
