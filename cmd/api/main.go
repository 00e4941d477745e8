package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"providerdirectory_backend/internal/controller"
	"providerdirectory_backend/internal/middleware"
	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/config"
	"providerdirectory_backend/pkg/cron"
	"providerdirectory_backend/pkg/database"
	"providerdirectory_backend/pkg/email"
	"providerdirectory_backend/pkg/payment"
	"providerdirectory_backend/pkg/sponsorship"
	"providerdirectory_backend/pkg/utils/storage"
)

func setupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)

	// Public Provider Routes
	providers := api.Group("/providers")
	providers.Get("/", controller.ListProviders)
	providers.Get("/sponsored", controller.ListSponsoredProviders)
	providers.Get("/:slug", controller.GetProviderBySlug)

	// Protected Routes
	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", controller.GetMe)

	// Protected Provider Routes
	myProviders := protected.Group("/providers")
	myProviders.Get("/my", controller.ListMyProviders)
	myProviders.Post("/", controller.CreateProvider)
	myProviders.Put("/:id", middleware.CheckProviderOwnership(), controller.UpdateProvider)
	myProviders.Post("/:id/logo", middleware.CheckProviderOwnership(), controller.UploadProviderLogo)

	// Sponsorship routes
	sponsorships := api.Group("/sponsorships")
	sponsorships.Get("/tiers", controller.ListTiers)

	subProtected := sponsorships.Use(middleware.AuthMiddleware())
	subProtected.Post("/checkout", controller.CreateCheckoutSession)
	subProtected.Post("/payment_intent", controller.CreatePaymentIntent)
	subProtected.Post("/confirm", controller.ConfirmPayment)
	subProtected.Post("/cancel", controller.CancelSponsorship)
	subProtected.Get("/my", controller.GetMySponsorship)

	// Stripe checkout redirect landing pages
	sponsorships.Get("/payment-success", controller.HandleSponsorshipSuccess)
	sponsorships.Get("/payment-cancelled", controller.HandleSponsorshipCancel)

	// Stripe webhook
	api.Post("/webhooks/payments", controller.HandlePaymentWebhook)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	cfg := config.Load()

	if err := email.InitEmailService(os.Getenv("RESEND_API_KEY")); err != nil {
		log.Printf("Email service disabled: %v", err)
	}

	if err := storage.InitStorage(); err != nil {
		log.Printf("Logo storage disabled: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.User{},
		&model.Provider{},
		&model.Sponsorship{},
		&model.WebhookEvent{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	repo := sponsorship.NewRepository(database.DB)

	var notifier sponsorship.Notifier
	if email.GlobalEmailService != nil {
		notifier = email.GlobalEmailService
	}
	svc := sponsorship.NewService(repo, gateway, cfg.Stripe, notifier)

	controller.InitSponsorshipController(svc)
	controller.InitWebhookController(gateway)
	cron.InitReconciliationCron(svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
