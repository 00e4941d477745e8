package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/database"
	"providerdirectory_backend/pkg/sponsorship"
	"providerdirectory_backend/pkg/utils/jwt"
)

var sponsorshipService *sponsorship.Service

func InitSponsorshipController(svc *sponsorship.Service) {
	sponsorshipService = svc
}

type CheckoutInput struct {
	Tier          string `json:"tier" validate:"required"`
	BillingPeriod string `json:"billing_period" validate:"required"`
	ProviderID    uint   `json:"provider_id" validate:"required"`
}

type PaymentIntentInput struct {
	Tier       string `json:"tier" validate:"required"`
	ProviderID uint   `json:"provider_id" validate:"required"`
}

type ConfirmInput struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

type CancelInput struct {
	ProviderID uint `json:"provider_id" validate:"required"`
}

func ListTiers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"tiers": sponsorship.ListTiers(),
	})
}

// CreateCheckoutSession starts the hosted checkout flow and returns the
// redirect URL. No sponsorship row exists until the webhook confirms payment.
func CreateCheckoutSession(c *fiber.Ctx) error {
	input := new(CheckoutInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	claims := c.Locals("user").(*jwt.Claims)

	url, err := sponsorshipService.StartCheckout(
		claims.UserID,
		input.ProviderID,
		sponsorship.Tier(input.Tier),
		sponsorship.BillingPeriod(input.BillingPeriod),
	)
	if err != nil {
		switch {
		case errors.Is(err, sponsorship.ErrValidation), errors.Is(err, sponsorship.ErrConfiguration):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, sponsorship.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, sponsorship.ErrAuthorization):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not create checkout session",
			})
		}
	}

	return c.JSON(fiber.Map{
		"url": url,
	})
}

// CreatePaymentIntent starts the in-page purchase flow. Unlike checkout this
// writes the pending sponsorship row immediately, keyed by the intent id.
func CreatePaymentIntent(c *fiber.Ctx) error {
	input := new(PaymentIntentInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	claims := c.Locals("user").(*jwt.Claims)

	result, err := sponsorshipService.CreatePaymentIntent(
		claims.UserID,
		input.ProviderID,
		sponsorship.Tier(input.Tier),
	)
	if err != nil {
		switch {
		case errors.Is(err, sponsorship.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, sponsorship.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, sponsorship.ErrAuthorization):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not create payment intent",
			})
		}
	}

	return c.JSON(fiber.Map{
		"client_secret":     result.ClientSecret,
		"payment_intent_id": result.PaymentIntentID,
		"sponsorship_id":    result.SponsorshipID,
		"amount":            result.AmountCents,
	})
}

// ConfirmPayment activates a payment-intent purchase after re-verifying the
// intent with the processor. The client's success signal alone is not enough.
func ConfirmPayment(c *fiber.Ctx) error {
	input := new(ConfirmInput)
	if err := c.BodyParser(input); err != nil || input.PaymentIntentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	sub, err := sponsorshipService.ConfirmPayment(input.PaymentIntentID)
	if err != nil {
		switch {
		case errors.Is(err, sponsorship.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, sponsorship.ErrPaymentIncomplete):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not confirm payment",
			})
		}
	}

	return c.JSON(fiber.Map{
		"message":     "Sponsorship activated successfully",
		"sponsorship": sub,
	})
}

func GetMySponsorship(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var sub model.Sponsorship
	err := database.DB.
		Joins("JOIN providers ON providers.id = sponsorships.provider_id").
		Where("providers.user_id = ? AND sponsorships.status = ?", claims.UserID, model.SponsorshipStatusActive).
		Order("sponsorships.created_at DESC").
		First(&sub).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active sponsorship found",
		})
	}

	return c.JSON(sub)
}

func CancelSponsorship(c *fiber.Ctx) error {
	input := new(CancelInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	claims := c.Locals("user").(*jwt.Claims)

	sub, err := sponsorshipService.CancelForProvider(claims.UserID, input.ProviderID)
	if err != nil {
		switch {
		case errors.Is(err, sponsorship.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, sponsorship.ErrAuthorization):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not cancel sponsorship",
			})
		}
	}

	return c.JSON(fiber.Map{
		"message":     "Sponsorship cancelled successfully",
		"sponsorship": sub,
	})
}

// Checkout redirect landing pages. The entitlement itself only changes via
// webhooks; these exist so the hosted flow has somewhere to send the browser.
func HandleSponsorshipSuccess(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Payment received. Your sponsorship will activate shortly.",
	})
}

func HandleSponsorshipCancel(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Checkout cancelled. No payment was taken.",
	})
}
