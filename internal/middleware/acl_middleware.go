package middleware

import (
	"github.com/gofiber/fiber/v2"

	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/database"
	"providerdirectory_backend/pkg/utils/jwt"
)

// CheckProviderOwnership guards routes with a :id provider parameter against
// callers who do not own the listing. Admins pass regardless.
func CheckProviderOwnership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)
		providerID := c.Params("id")

		var provider model.Provider
		if err := database.DB.First(&provider, providerID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Provider not found",
			})
		}

		if provider.UserID != claims.UserID && claims.Role != "admin" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You don't have permission to access this provider",
			})
		}

		return c.Next()
	}
}
