package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/stackpay/internal/config"
	"github.com/example/stackpay/internal/handlers"
	"github.com/example/stackpay/internal/middleware"
	"github.com/example/stackpay/internal/repository"
	"github.com/example/stackpay/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	transactions := repository.NewTransactionStore(db)
	customers := repository.NewCustomerStore(db)

	notifier := services.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	provider := services.NewPayMobClient(cfg, customers)
	orchestration := services.NewOrchestrationService(transactions, provider)
	webhook := services.NewWebhookService(transactions, cfg.HMACSecretKey, notifier)

	authHandler := handlers.NewAuthHandler(db, cfg)
	profileHandler := handlers.NewProfileHandler(db)
	transactionHandler := handlers.NewTransactionHandler(transactions, orchestration, webhook)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/verify", middleware.AuthMiddleware(cfg), authHandler.Verify)
	auth.Post("/resend-code", middleware.AuthMiddleware(cfg), authHandler.ResendCode)

	// The provider calls back without credentials; the HMAC signature is the
	// authentication.
	api.Post("/transactions/webhook", transactionHandler.Webhook)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)
	protected.Post("/profile/kyc", profileHandler.SubmitKYC)
	protected.Get("/profile/kyc", profileHandler.GetKYCStatus)

	// Payment routes require a verified customer profile.
	verified := protected.Group("", middleware.RequireVerifiedCustomer(db))
	verified.Post("/transactions", transactionHandler.Create)
	verified.Get("/transactions", transactionHandler.List)
}
