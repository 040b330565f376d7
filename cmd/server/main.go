// First Principles - guided problem solving server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/firstprinciples/internal/api"
	"github.com/ashureev/firstprinciples/internal/config"
	"github.com/ashureev/firstprinciples/internal/gateway"
	"github.com/ashureev/firstprinciples/internal/metrics"
	"github.com/ashureev/firstprinciples/internal/middleware"
	"github.com/ashureev/firstprinciples/internal/report"
	"github.com/ashureev/firstprinciples/internal/sessions"
	"github.com/ashureev/firstprinciples/internal/store"
	"github.com/ashureev/firstprinciples/internal/transcript"
	"github.com/ashureev/firstprinciples/internal/wizard"
	"github.com/ashureev/firstprinciples/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		fmt.Fprintln(os.Stderr, config.MissingAPIKeyMessage)
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "model", cfg.OpenAI.Model)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	sink, err := report.NewFileSink(afero.NewOsFs(), cfg.ReportDir)
	if err != nil {
		slog.Error("Failed to initialize report directory", "error", err)
		os.Exit(1)
	}
	slog.Info("Reports will be saved", "dir", sink.Dir())
	publisher := report.NewPublisher(sink,
		report.WithCatalog(repo),
		report.WithObserver(recorder),
		report.WithLogger(logger),
	)

	completer, err := gateway.NewOpenAI(gateway.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	})
	if err != nil {
		slog.Error("Failed to initialize completion provider", "error", err)
		os.Exit(1)
	}

	transcriptLogger, err := transcript.NewLogger(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcriptLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close transcript logger", "error", closeErr)
		}
	}()

	gw := gateway.New(completer,
		gateway.WithObserver(recorder),
		gateway.WithObserver(transcript.Observer(transcriptLogger)),
		gateway.WithLogger(logger),
	)

	sessionRegistry := sessions.NewRegistry(func(h sessions.Handle) *wizard.Session {
		return wizard.NewSession(gw, publisher.For(report.Owner{UserID: h.UserID, SessionID: h.SessionID}))
	}, sessions.WithGauge(recorder))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	router := api.NewRouter(api.RouterConfig{
		Repo:           repo,
		Registry:       sessionRegistry,
		Model:          gw.Model(),
		Transitions:    recorder,
		RateLimiter:    limiter,
		OnRateLimited:  recorder.IncRateLimited,
		AllowedOrigins: cfg.AllowedOrigins(),
		IsDevelopment:  cfg.IsDevelopment(),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Static:         web.SPAHandler(),
		RequestLogging: true,
	})

	// WriteTimeout covers the longest completion call plus rendering.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OpenAI.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeperDone := sessions.StartSweeper(ctx, sessionRegistry, cfg.SessionIdleTTL,
		sessions.SweepInterval(cfg.SessionIdleTTL), nil)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
}
