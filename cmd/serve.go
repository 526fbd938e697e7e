package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"table-merger/core/config"
	"table-merger/core/database"
	"table-merger/core/loader"
	"table-merger/core/logger"
	"table-merger/core/middleware/auth"
	"table-merger/core/middleware/rayid"
	"table-merger/feature/audit"
	"table-merger/feature/report"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd starts the report API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the merge audit ledger over HTTP",
	Long:  `Starts the HTTP server exposing recorded merge runs and their per-shard results.`,
	RunE:  runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logg.Sync()
	zap.ReplaceGlobals(logg)

	// The ledger is optional; without it the report feature stays disabled.
	var ledger report.Ledger
	if db, err := database.Connect(cfg.Database); err != nil {
		logg.Warn("Optional audit ledger unavailable", zap.Error(err))
	} else {
		store := audit.NewStore(db)
		if err := store.Migrate(); err != nil {
			return err
		}
		ledger = store
		logg.Info("Connected to audit ledger", zap.String("driver", cfg.Database.Driver))
	}

	app := newApp(cfg, logg, ledger)

	go func() {
		logg.Info("Starting server", zap.String("addr", cfg.Server.Addr()))
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			logg.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logg.Info("Shutting down server...")
	return app.Shutdown()
}

// newApp builds the Fiber app with middleware and every enabled feature.
func newApp(cfg *config.Config, logg *zap.Logger, ledger report.Ledger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// RayID first so every later log line can carry it.
	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Info("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

	mgr := loader.NewManager(logg)
	mgr.Register(report.NewFeature(ledger, logg))
	if err := mgr.LoadAll(app); err != nil {
		logg.Fatal("Failed to load features", zap.Error(err))
	}

	return app
}
