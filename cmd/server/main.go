// Aurasense companion - conversational onboarding and routing server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/aurasense/companion/internal/api"
	"github.com/aurasense/companion/internal/config"
	"github.com/aurasense/companion/internal/dialogue"
	"github.com/aurasense/companion/internal/domain"
	"github.com/aurasense/companion/internal/extract"
	"github.com/aurasense/companion/internal/middleware"
	"github.com/aurasense/companion/internal/router"
	"github.com/aurasense/companion/internal/schema"
	"github.com/aurasense/companion/internal/store"
	"github.com/aurasense/companion/internal/sweep"
	"github.com/aurasense/companion/internal/voice"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StoreBackend, "dev", cfg.IsDevelopment())

	// Field schema: embedded default unless a file is configured.
	var registry *schema.Registry
	if cfg.SchemaPath != "" {
		registry, err = schema.LoadFile(cfg.SchemaPath)
	} else {
		registry, err = schema.LoadDefault()
	}
	if err != nil {
		slog.Error("Failed to load field schema", "error", err)
		os.Exit(1)
	}
	slog.Info("Field schema loaded", "fields", len(registry.Fields()), "required", len(registry.Required()))

	// Session store backend.
	var sessions store.Store
	switch cfg.StoreBackend {
	case "sqlite":
		sessions, err = store.NewSQLite(cfg.DBPath)
	case "redis":
		sessions, err = store.NewRedis(cfg.RedisAddr, cfg.SessionRetention)
	default:
		sessions = store.NewMemory()
	}
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := sessions.Ping(context.Background()); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store connected")

	// NLU extraction client.
	extractor, err := extract.NewHTTPExtractor(extract.HTTPExtractorConfig{
		URL:     cfg.NLU.URL,
		APIKey:  cfg.NLU.APIKey,
		Timeout: cfg.NLU.Timeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize extraction client", "error", err)
		os.Exit(1)
	}

	controller := dialogue.NewController(sessions, registry, extractor, dialogue.Config{
		SessionTTL:     cfg.SessionTTL,
		RepromptWindow: cfg.RepromptWindow,
		EscalateAfter:  cfg.EscalateAfter,
	}, logger)

	// Steady-state routing. Domain handlers are owned by downstream
	// services; until they register themselves only the general fallback
	// answers.
	routing := router.NewRegistry(router.NewRouter(cfg.RouterMinScore))
	routing.Register(domain.DomainGeneral, router.HandlerFunc(
		func(ctx context.Context, text string, userCtx domain.UserContext) (string, error) {
			return "I can help with food, travel, social plans and your profile. What would you like to do?", nil
		}))

	// Optional speech adapters for the WebSocket channel.
	var transcriber voice.Transcriber
	var synthesizer voice.Synthesizer
	if cfg.Voice.STTURL != "" {
		transcriber, err = voice.NewHTTPTranscriber(cfg.Voice.STTURL, cfg.Voice.APIKey, 0)
		if err != nil {
			slog.Error("Failed to initialize transcriber", "error", err)
			os.Exit(1)
		}
		slog.Info("Speech-to-text enabled", "url", cfg.Voice.STTURL)
	}
	if cfg.Voice.TTSURL != "" {
		synthesizer, err = voice.NewHTTPSynthesizer(cfg.Voice.TTSURL, cfg.Voice.APIKey, 0)
		if err != nil {
			slog.Error("Failed to initialize synthesizer", "error", err)
			os.Exit(1)
		}
		slog.Info("Text-to-speech enabled", "url", cfg.Voice.TTSURL)
	}

	handler := api.NewHandler(controller, routing)
	wsHandler := api.NewWebSocketHandler(controller, transcriber, synthesizer, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r)

	// WebSocket endpoint for voice clients.
	r.Get("/ws/onboarding", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket sessions are long-lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background expiry sweep.
	sweep.Start(ctx, sessions, sweep.Config{
		Interval:  cfg.SweepInterval,
		TTL:       cfg.SessionTTL,
		Retention: cfg.SessionRetention,
	})

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
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
