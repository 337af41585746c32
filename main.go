package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"salesdesk/ai"
	"salesdesk/config"
	controller "salesdesk/controllers"
	"salesdesk/llm"
	"salesdesk/middleware"
	"salesdesk/routes"
	"salesdesk/utils"
	"salesdesk/worker"
)

const version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "salesdesk",
	Short:   "Relationship desk for research clients",
	Long:    "salesdesk serves the client, lead, invoice and research-report API behind the sales desk UI.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		config.InitLogger()
		return nil
	},
	SilenceUsage: true,
}

func init() {
	importCmd.Flags().String("type", controller.ImportProspects, "prospects or invoices")
	tokenCmd.Flags().String("email", "", "email claim for the token")
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "token lifetime")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(tokenCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Connect to the database and apply migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ConnectDB(); err != nil {
			return err
		}
		defer config.CloseDB(config.DB)
		fmt.Println("Migrations applied.")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import a prospects or invoices CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		importType, _ := cmd.Flags().GetString("type")
		if importType != controller.ImportProspects && importType != controller.ImportInvoices {
			return fmt.Errorf("--type must be %s or %s", controller.ImportProspects, controller.ImportInvoices)
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if err := config.ConnectDB(); err != nil {
			return err
		}
		defer config.CloseDB(config.DB)

		var result *controller.ImportResult
		if importType == controller.ImportProspects {
			result, err = controller.ImportProspectsCSV(config.DB, f)
		} else {
			result, err = controller.ImportInvoicesCSV(config.DB, f, time.Now())
		}
		if err != nil {
			return err
		}

		fmt.Printf("Created %d %s", result.Created, importType)
		if result.ClientsCreated > 0 {
			fmt.Printf(", %d new clients", result.ClientsCreated)
		}
		if result.Duplicates > 0 {
			fmt.Printf(", %d duplicates skipped", result.Duplicates)
		}
		fmt.Println()
		for _, rowErr := range result.Errors {
			fmt.Printf("  row %d: %s\n", rowErr.Row, rowErr.Reason)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an API access token signed with AUTH_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := utils.GenerateJWTToken(config.AppConfig.AuthSecret, args[0], email, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func serve() error {
	log := logrus.WithField("component", "server")

	flush, err := config.InitSentry()
	if err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	}
	defer flush()

	if err := config.ConnectDB(); err != nil {
		return err
	}
	defer config.CloseDB(config.DB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewProvider(ctx, config.AppConfig.LLM)
	if err != nil {
		return fmt.Errorf("initializing LLM provider: %w", err)
	}
	aiService, err := ai.NewService(config.DB, provider)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	hub := controller.NewEventHub(logrus.WithField("component", "events"))
	go hub.Run(ctx)

	opts := routes.OptionsFromConfig(config.AppConfig)
	opts.AI = aiService
	opts.Hub = hub

	if config.AppConfig.SMTPConfigured() {
		opts.Mailer = utils.NewSMTPMailer(config.AppConfig.SMTP)
	} else {
		log.Warn("SMTP is not configured; reminders and lead emails cannot be sent")
	}

	if config.AppConfig.IMAPConfigured() {
		syncer := controller.NewInboxSyncer(config.DB, utils.NewIMAPFetcher(config.AppConfig.IMAP), hub, logrus.WithField("component", "inbox"))
		opts.Inbox = syncer

		interval := time.Duration(config.AppConfig.IMAP.SyncMinutes) * time.Minute
		inboxWorker := worker.NewInboxWorker(syncer, interval, logrus.WithField("component", "inbox_worker"))
		go inboxWorker.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      "salesdesk " + version,
		BodyLimit:    30 << 20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		ErrorHandler: errorHandler,
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = config.AppConfig.CORSOrigins
	app.Use(middleware.CORS(cors))

	routes.SetupRoutes(app, config.DB, opts)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server starting on port %s", config.AppConfig.ServerPort)
		errCh <- app.Listen(":" + config.AppConfig.ServerPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

// errorHandler renders errors that escape a handler in the API envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		return utils.ErrorResponse(c, code, fe.Message, nil)
	}
	utils.LogError("unhandled", err, map[string]interface{}{"path": c.Path(), "method": c.Method()})
	return utils.ErrorResponse(c, code, "Internal server error", err)
}
