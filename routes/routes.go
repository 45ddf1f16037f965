package routes

import (
	"log"
	"os"

	"proquote/config"
	controller "proquote/controllers"
	"proquote/middleware"
	"proquote/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

// Controllers bundles the constructed controllers so the worker and the route
// tree share the same instances.
type Controllers struct {
	Quote     *controller.QuoteController
	Lead      *controller.LeadController
	Claim     *controller.ClaimController
	Admin     *controller.AdminController
	Business  *controller.BusinessController
	Dashboard *controller.DashboardController
}

func NewControllers(db *gorm.DB, mailer *utils.Mailer) *Controllers {
	claimController := controller.NewClaimController(db, mailer, log.New(os.Stdout, "CLAIM: ", log.LstdFlags))
	return &Controllers{
		Quote:     controller.NewQuoteController(db, log.New(os.Stdout, "QUOTE: ", log.LstdFlags)),
		Lead:      controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags)),
		Claim:     claimController,
		Admin:     controller.NewAdminController(db, claimController, log.New(os.Stdout, "ADMIN: ", log.LstdFlags)),
		Business:  controller.NewBusinessController(db, claimController, log.New(os.Stdout, "BUSINESS: ", log.LstdFlags)),
		Dashboard: controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags)),
	}
}

func SetupPublicRoutes(app *fiber.App, ctrl *Controllers) {
	// Public intake and directory endpoints, no authentication required
	public := app.Group("", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Quote intake with per-IP rate limiting on submission
	public.Post("/quotes", middleware.QuoteRateLimiter(), ctrl.Quote.SubmitQuote)
	public.Get("/quotes/:reference", ctrl.Quote.GetQuoteStatus)

	// Business directory
	public.Get("/businesses", ctrl.Business.SearchDirectory)
	public.Get("/businesses/:businessID", ctrl.Business.GetBusiness)

	// Claim funnel pages
	public.Get("/claim/:token", ctrl.Claim.GetClaimPage)
	public.Post("/claim/:token/complete", ctrl.Claim.HandleCompleteClaim)

	// Email tracking endpoints referenced from outreach messages
	public.Get("/track/open/:token/:signature", ctrl.Claim.HandleOpenTracking)
	public.Get("/track/click/:token/:signature", ctrl.Claim.HandleClickTracking)

	// Provider webhooks
	public.Post("/webhooks/outreach", ctrl.Claim.HandleOutreachWebhook)
	public.Post("/webhooks/stripe", controller.HandlePaymentWebhook)
}

func SetupAuthRoutes(app *fiber.App) {
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)
}

func SetupAPIRoutes(app *fiber.App, ctrl *Controllers) {
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Dashboard routes
	api.Get("/dashboard/stats", ctrl.Dashboard.GetDashboardStats)

	// Lead routes, scoped to the requesting owner's businesses
	lead := api.Group("/businesses/:businessID/leads")
	lead.Get("/", ctrl.Lead.ListLeads)
	lead.Post("/:quoteID/reveal", ctrl.Lead.HandleReveal)
	lead.Put("/:quoteID/status", ctrl.Lead.UpdateLeadStatus)

	// Billing routes
	api.Get("/plans", controller.ListPlans)
	api.Post("/payment/create-intent", controller.CreatePaymentIntent)

	// Business management
	api.Post("/businesses", ctrl.Business.CreateBusiness)

	// Admin routes
	admin := api.Group("/admin", middleware.AdminOnly())
	admin.Get("/duplicates", ctrl.Admin.HandlePreviewDuplicates)
	admin.Post("/duplicates/merge", ctrl.Admin.HandleMergeDuplicates)
	admin.Post("/campaigns/bulk-issue", ctrl.Admin.HandleBulkIssue)
	admin.Post("/contacts/consolidate", ctrl.Admin.HandleConsolidate)
	admin.Delete("/businesses/:businessID", ctrl.Admin.HandleDeleteBusiness)
	admin.Get("/funnel/stats", ctrl.Admin.HandleFunnelStats)

	// WebSocket route for live funnel stats
	app.Get("/api/v1/admin/funnel/live", middleware.Protected(), middleware.AdminOnly(),
		websocket.New(ctrl.Admin.HandleFunnelStatsWS))
}

func SetupRoutes(app *fiber.App, db *gorm.DB) *Controllers {
	// Initialize Stripe
	controller.InitStripe()

	mailer := utils.NewMailer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
		config.AppConfig.FromEmail,
		config.AppConfig.FromName,
		config.AppConfig.BaseURL,
	)
	ctrl := NewControllers(db, mailer)

	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupPublicRoutes(app, ctrl)
	SetupAuthRoutes(app)
	SetupAPIRoutes(app, ctrl)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	return ctrl
}
