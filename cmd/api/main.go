package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/oaps-analytics/zendesk-reporting/internal/api/http"
	"github.com/oaps-analytics/zendesk-reporting/internal/api/http/handlers"
	"github.com/oaps-analytics/zendesk-reporting/internal/auth"
	"github.com/oaps-analytics/zendesk-reporting/internal/config"
	"github.com/oaps-analytics/zendesk-reporting/internal/mailer"
	"github.com/oaps-analytics/zendesk-reporting/internal/observability"
	"github.com/oaps-analytics/zendesk-reporting/internal/persistence"
	"github.com/oaps-analytics/zendesk-reporting/internal/report"
	"github.com/oaps-analytics/zendesk-reporting/internal/service"
	"github.com/oaps-analytics/zendesk-reporting/internal/sharepoint"
	"github.com/oaps-analytics/zendesk-reporting/internal/zendesk"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	clock, err := report.NewClock(cfg.App.ReportTimezone, time.Now)
	if err != nil {
		logger.Fatal("failed to load report timezone", zap.Error(err))
	}

	cache := persistence.NewResolutionCache(cfg.Redis, logger)
	defer cache.Close()

	source := zendesk.NewClient(logger, cfg.Zendesk.GroupIDs)
	enricher := &report.Enricher{Source: source, Cache: cache, Logger: logger}

	reports := service.NewReportService(service.ReportDependencies{
		Source:   source,
		Enricher: enricher,
		Clock:    clock,
		Logger:   logger,
	})
	exports := service.NewExportService(service.ExportDependencies{
		Reports:  reports,
		Uploader: sharepoint.NewUploader(cfg.SharePoint, logger),
		Notifier: mailer.NewMailer(cfg.Email, logger),
		Meta:     persistence.NewMetaStore(cfg.Export.MetaPath, logger),
		Clock:    clock,
		Logger:   logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, cfg, logger, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(),
		Tickets:     handlers.NewTicketsHandler(reports),
		Export:      handlers.NewExportHandler(exports),
		Users:       handlers.NewUsersHandler(reports),
		AccessGuard: auth.NewMiddleware(logger),
		RateLimiter: httptransport.NewRateLimiter(cfg.RateLimit, time.Now),
	}, logger)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
