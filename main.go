package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/argo-explorer/dashboard/pkg/apiurl"
	"github.com/argo-explorer/dashboard/pkg/backend"
	"github.com/argo-explorer/dashboard/pkg/charts"
	"github.com/argo-explorer/dashboard/pkg/config"
	"github.com/argo-explorer/dashboard/pkg/export"
	"github.com/argo-explorer/dashboard/pkg/handlers"
	"github.com/argo-explorer/dashboard/pkg/health"
	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/middleware"
	"github.com/argo-explorer/dashboard/pkg/query"
	"github.com/argo-explorer/dashboard/pkg/roster"
	"github.com/argo-explorer/dashboard/pkg/session"
	"github.com/argo-explorer/dashboard/pkg/upload"
	"github.com/argo-explorer/dashboard/ui"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("backend", logging.SanitizeURL(cfg.Backend.DefaultBaseURL)),
		zap.String("state_file", cfg.Backend.StateFile),
		zap.Duration("health_interval", cfg.Health.Interval))

	resolver := apiurl.NewResolver(apiurl.Options{
		Default:     cfg.Backend.DefaultBaseURL,
		PageOrigin:  cfg.BaseURL,
		Development: cfg.IsDevelopment(),
		Store:       apiurl.NewFileStore(cfg.Backend.StateFile),
		Logger:      logger.Named("apiurl"),
	})
	client := backend.NewClient(resolver, cfg.Backend.RequestTimeout, logger)
	prober := health.NewProber(resolver, cfg.Health, logger)

	uploader := upload.NewUploader(client, prober, cfg.Upload, logger)
	// A different backend may or may not expose the upload route.
	prober.Subscribe(func(bool) { uploader.Invalidate() })

	sessions := session.NewStore(cfg.Session, !cfg.IsDevelopment(), logger)

	distFS, err := fs.Sub(ui.DistFS(), "dist")
	if err != nil {
		logger.Fatal("Failed to open UI filesystem", zap.Error(err))
	}

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, prober, logger).RegisterRoutes(mux)
	handlers.NewStatusHandler(prober, resolver, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(query.NewSubmitter(client, prober, logger), client, sessions, logger).RegisterRoutes(mux)
	handlers.NewFloatHandler(roster.NewService(client, cfg.Roster, logger), logger).RegisterRoutes(mux)
	handlers.NewUploadHandler(uploader, prober, sessions, cfg.Upload.MaxBytes, logger).RegisterRoutes(mux)
	handlers.NewExportHandler(export.NewExporter(client, logger), logger).RegisterRoutes(mux)
	handlers.NewChartHandler(charts.NewRenderer(cfg.Charts, logger), logger).RegisterRoutes(mux)
	handlers.NewDataHandler(client, prober, logger).RegisterRoutes(mux)

	indexHandler, err := handlers.NewIndexHandler(distFS, prober, resolver, sessions, cfg.Version, logger)
	if err != nil {
		logger.Fatal("Failed to load UI", zap.Error(err))
	}
	indexHandler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return prober.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("Starting argo-explorer",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// newLogger returns a development logger for local environments and a JSON
// production logger otherwise.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		logConfig := zap.NewDevelopmentConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return logConfig.Build()
	}
	return zap.NewProduction()
}
