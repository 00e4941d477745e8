package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"providerdirectory_backend/pkg/payment"
	"providerdirectory_backend/pkg/sponsorship"
)

var webhookGateway payment.Gateway

func InitWebhookController(gateway payment.Gateway) {
	webhookGateway = gateway
}

// HandlePaymentWebhook is the inbound processor boundary. Signature
// verification is the authentication mechanism for this endpoint; only
// signature and parse failures return 400 so the processor redelivers them.
// Everything understood — including events we deliberately ignore — is
// acknowledged with 200, and an unexpected internal failure returns 500 to
// force redelivery instead of being swallowed.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	event, err := webhookGateway.ConstructEvent(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	outcome, err := sponsorshipService.HandleEvent(event)
	switch outcome {
	case sponsorship.OutcomeApplied, sponsorship.OutcomeIgnored:
		return c.JSON(fiber.Map{
			"received": true,
		})
	case sponsorship.OutcomeMalformed:
		log.Printf("Malformed webhook event %s: %v", event.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed event payload",
		})
	default:
		log.Printf("Unexpected failure handling webhook event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Event processing failed",
		})
	}
}
