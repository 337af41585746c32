package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/ai"
	"salesdesk/config"
	controller "salesdesk/controllers"
	"salesdesk/middleware"
	"salesdesk/utils"
)

// Options carries the services built in main. Nil members disable the
// features that need them.
type Options struct {
	AI               *ai.Service
	Mailer           utils.Mailer
	Hub              *controller.EventHub
	Inbox            *controller.InboxSyncer
	RateLimitStorage fiber.Storage
	AuthSecret       string
	AIRateLimit      int
	StripeSecretKey  string
	StripeWebhook    string
	RequestLogging   bool
}

// OptionsFromConfig fills the config-driven fields of Options from AppConfig.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		RateLimitStorage: middleware.RateLimitStorage(cfg.Redis),
		AuthSecret:       cfg.AuthSecret,
		AIRateLimit:      cfg.AIRateLimit,
		StripeSecretKey:  cfg.StripeSecretKey,
		StripeWebhook:    cfg.StripeWebhookSecret,
		RequestLogging:   true,
	}
}

func component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, opts Options) {
	var events controller.EventPublisher
	if opts.Hub != nil {
		events = opts.Hub
	}
	if opts.AI == nil {
		// answers 400 until a provider is configured
		svc, err := ai.NewService(db, nil)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to load AI prompts")
		}
		opts.AI = svc
	}

	clientController := controller.NewClientController(db, component("client"), events)
	leadController := controller.NewLeadController(db, component("lead"), events)
	invoiceController := controller.NewInvoiceController(db, component("invoice"), events)
	emailController := controller.NewEmailController(db, component("email"), opts.Mailer, events)
	paymentController := controller.NewPaymentController(db, component("payment"), events, opts.StripeSecretKey, opts.StripeWebhook)
	reportController := controller.NewContentReportController(db, component("content_report"), opts.AI, events)
	summaryController := controller.NewReportSummaryController(db, component("report_summary"), events)
	taskController := controller.NewTaskController(db, component("task"), events)
	feedbackController := controller.NewFeedbackController(db, component("feedback"), events)
	aiController := controller.NewAIController(opts.AI, component("ai"))
	dashboardController := controller.NewDashboardController(db, component("dashboard"))
	uploadController := controller.NewUploadController(db, component("upload"), events)
	inboxController := controller.NewInboxController(opts.Inbox, component("inbox"))

	// Stripe calls the webhook directly, so it sits outside the auth group
	app.Post("/api/payments/webhook", paymentController.HandleWebhook)

	handlers := []fiber.Handler{middleware.Protected(opts.AuthSecret)}
	if opts.RequestLogging {
		handlers = append(handlers, logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	api := app.Group("/api", handlers...)

	// Client routes
	clients := api.Group("/clients")
	clients.Get("/", clientController.GetClients)
	clients.Post("/", clientController.CreateClient)
	clients.Delete("/bulk/clear", clientController.ClearClients)
	clients.Get("/:id", clientController.GetClient)
	clients.Patch("/:id", clientController.UpdateClient)
	clients.Delete("/:id", clientController.DeleteClient)

	// Lead routes
	leads := api.Group("/leads")
	leads.Get("/", leadController.GetLeads)
	leads.Post("/", leadController.CreateLead)
	leads.Get("/pipeline", leadController.GetPipeline)
	leads.Get("/export", leadController.ExportLeads)
	leads.Delete("/bulk/clear", leadController.ClearLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Patch("/:id", leadController.UpdateLead)
	leads.Delete("/:id", leadController.DeleteLead)
	leads.Get("/:id/emails", emailController.GetLeadEmails)
	leads.Post("/:id/emails", emailController.CreateLeadEmail)

	// Invoice routes
	invoices := api.Group("/invoices")
	invoices.Get("/", invoiceController.GetInvoices)
	invoices.Post("/", invoiceController.CreateInvoice)
	invoices.Get("/aging", invoiceController.GetAging)
	invoices.Delete("/bulk/clear", invoiceController.ClearInvoices)
	invoices.Get("/:id", invoiceController.GetInvoice)
	invoices.Patch("/:id", invoiceController.UpdateInvoice)
	invoices.Delete("/:id", invoiceController.DeleteInvoice)
	invoices.Post("/:id/send-reminder", emailController.SendInvoiceReminder)
	invoices.Get("/:id/emails", emailController.GetInvoiceEmails)
	invoices.Post("/:id/payment-intent", paymentController.CreatePaymentIntent)

	// Content report routes
	reports := api.Group("/content-reports")
	reports.Get("/", reportController.GetReports)
	reports.Post("/", reportController.CreateReport)
	reports.Post("/import-url", reportController.ImportURL)
	reports.Get("/:id", reportController.GetReport)
	reports.Patch("/:id", reportController.UpdateReport)
	reports.Delete("/:id", reportController.DeleteReport)
	reports.Post("/:id/summarize", middleware.AIRateLimiter(opts.AIRateLimit, opts.RateLimitStorage), reportController.SummarizeReport)

	summaries := api.Group("/report-summaries")
	summaries.Get("/", summaryController.GetSummaries)
	summaries.Get("/:id", summaryController.GetSummary)
	summaries.Delete("/:id", summaryController.DeleteSummary)

	// Task routes
	tasks := api.Group("/tasks")
	tasks.Get("/", taskController.GetTasks)
	tasks.Post("/", taskController.CreateTask)
	tasks.Get("/:id", taskController.GetTask)
	tasks.Patch("/:id", taskController.UpdateTask)
	tasks.Delete("/:id", taskController.DeleteTask)

	// Feedback routes
	api.Get("/feedback", feedbackController.GetFeedback)
	api.Post("/feedback", feedbackController.CreateFeedback)

	// AI routes
	aiGroup := api.Group("/ai")
	aiGroup.Post("/feedback", feedbackController.CreateAIFeedback)
	aiGroup.Get("/content/:contentId", feedbackController.GetAIContent)

	generate := aiGroup.Group("", middleware.AIRateLimiter(opts.AIRateLimit, opts.RateLimitStorage))
	generate.Post("/generate-call-prep", aiController.GenerateCallPrep)
	generate.Post("/content-suggestions", aiController.SuggestCampaigns)
	generate.Post("/generate-campaign-email", aiController.GenerateCampaignEmail)
	generate.Post("/track-themes", aiController.TrackThemes)
	generate.Post("/generate-theme-email", aiController.GenerateThemeEmail)
	generate.Post("/lead-scoring", aiController.ScoreLeads)
	generate.Post("/prospect-fund-match", aiController.MatchProspectFunds)

	// Dashboard
	api.Get("/dashboard/stats", dashboardController.GetDashboardStats)

	// Uploads
	api.Post("/upload-pdf", reportController.UploadPDF)
	api.Post("/upload/csv", uploadController.UploadCSV)

	// Inbox
	api.Post("/inbox/sync", inboxController.SyncInbox)

	// WebSocket route for change events
	if opts.Hub != nil {
		app.Use("/ws", middleware.Protected(opts.AuthSecret), func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", websocket.New(opts.Hub.HandleWebSocket))
	}

	logrus.Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, opts Options) {
	app.Use(middleware.Metrics())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":        status,
			"ai_configured": opts.AI != nil && opts.AI.Configured(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	SetupAPIRoutes(app, db, opts)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "The requested resource was not found", nil)
	})
}
