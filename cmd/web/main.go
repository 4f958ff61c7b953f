package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"sales-dashboard/internal/classifier"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/store"
	"sales-dashboard/internal/ui/templates"
)

const (
	version         = "2.0.0"
	renderTimeout   = 10 * time.Second
	seedLoadTimeout = 2 * time.Minute
	restoreTimeout  = 30 * time.Second
	janitorInterval = time.Minute
	visitorMaxIdle  = 3 * time.Minute
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	if err := run(cfg, logger, logCloser); err != nil {
		logger.Error("application failed", "error", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
	logger.Info("application stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger, logCloser io.Closer) error {
	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"storage_path", cfg.Storage.Path,
		"storage_in_memory", cfg.Storage.InMemory,
		"classifier_source", cfg.Classifier.Source,
	)

	kv, err := store.OpenBadger(store.BadgerOptions{
		Path:       cfg.Storage.Path,
		InMemory:   cfg.Storage.InMemory,
		QuotaBytes: cfg.Storage.QuotaBytes,
	}, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	codec, err := store.NewCodec(kv, logger)
	if err != nil {
		_ = kv.Close()
		return fmt.Errorf("create codec: %w", err)
	}
	closeStorage := sync.OnceValue(func() error {
		return errors.Join(codec.Close(), kv.Close())
	})
	defer closeStorage()

	var loader services.ClassifierLoader
	if source := classifier.SourceFor(cfg.Classifier.Source); source != nil {
		loader = classifier.NewCache(source, logger)
	}

	dataset := services.NewDataset(codec, loader, logger,
		services.WithClassifierTimeout(cfg.Classifier.LoadTimeout))
	if err := loadInitialData(dataset, cfg.Dataset.SeedFile, logger); err != nil {
		logger.Error("failed to load seed data, starting empty", "error", err)
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.RunJanitor(janitorCtx, janitorInterval, visitorMaxIdle)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, dataset, rateLimiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server.ShutdownTimeout)
	gracefulServer.RegisterShutdownHook("rate-limit-janitor", func(context.Context) error {
		stopJanitor()
		return nil
	})
	gracefulServer.RegisterShutdownHook("storage", func(context.Context) error {
		return closeStorage()
	})
	gracefulServer.RegisterShutdownHook("log-file", func(context.Context) error {
		return logCloser.Close()
	})

	return gracefulServer.ListenAndServe()
}

// loadInitialData restores the stored dataset. When storage holds nothing
// it falls back to seedFile, if set.
func loadInitialData(dataset *services.Dataset, seedFile string, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	n := dataset.Restore(ctx)
	cancel()
	if n > 0 || seedFile == "" {
		return nil
	}

	ctx, cancel = context.WithTimeout(context.Background(), seedLoadTimeout)
	defer cancel()

	res, err := dataset.LoadFromFile(ctx, seedFile)
	if err != nil {
		return err
	}
	logger.Info("seed data loaded", "file", seedFile, "records", len(res.Records), "skipped", res.Skipped)
	return nil
}

func newHandler(cfg *config.Config, dataset *services.Dataset, rateLimiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	maxUpload := cfg.Upload.MaxBytes
	if maxUpload <= 0 {
		maxUpload = ingest.DefaultMaxUploadBytes
	}

	srv := server.NewServer(dataset, logger, &server.TemplateHandlers{Dashboard: handleDashboard},
		server.Options{MaxUploadBytes: maxUpload})

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.TrustedProxy(cfg.Security),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(),
	)
	return chain(srv)
}
