// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fintastic-ai/research-chat/internal/answer"
	"github.com/fintastic-ai/research-chat/internal/chat"
	"github.com/fintastic-ai/research-chat/internal/config"
	"github.com/fintastic-ai/research-chat/internal/conversation"
	"github.com/fintastic-ai/research-chat/internal/events"
	"github.com/fintastic-ai/research-chat/internal/handler"
	"github.com/fintastic-ai/research-chat/internal/middleware"
	"github.com/fintastic-ai/research-chat/internal/session"
	"github.com/fintastic-ai/research-chat/internal/store"
	"github.com/fintastic-ai/research-chat/pkg/logger"
	"github.com/fintastic-ai/research-chat/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "research-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect the event publisher when a broker is configured. Events are
	// best-effort; the service runs without one.
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.Connect(ctx, events.Config{
			URL:   cfg.NATSURL,
			Token: cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
		}
	}

	// Open the local persistence store
	local, err := store.Open(cfg.StorePath, log)
	if err != nil {
		log.Error("failed to open local store", zap.Error(err))
		os.Exit(1)
	}
	defer local.Close()

	// Build the answering client
	apiKey := cfg.AnthropicAPIKey
	if answer.Provider(cfg.AnswerProvider) == answer.ProviderOpenAI {
		apiKey = cfg.OpenAIAPIKey
	}
	client, err := answer.NewClient(answer.Provider(cfg.AnswerProvider), cfg.AskEndpoint, apiKey, cfg.AnswerModel, cfg.AskTimeout)
	if err != nil {
		log.Error("failed to create answer client", zap.Error(err))
		os.Exit(1)
	}
	log.Info("answer provider ready", zap.String("provider", client.Name()))

	// Wire the session core
	convs := conversation.NewStore(local, log)
	sessions := session.NewManager(local, convs, session.Fabricated{}, log)
	engine := chat.NewEngine(convs, client, publisher, log)

	// Re-hydrate a previously persisted session, if any
	if id, ok := sessions.Restore(); ok {
		log.Info("previous session restored", zap.String("email", id.Email))
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(publisher, cfg.NATSURL != "")
	authHandler := handler.NewAuthHandler(sessions, cfg.JWTSecret, cfg.JWTExpiration, log)
	conversationHandler := handler.NewConversationHandler(sessions, convs, engine, log)
	askHandler := handler.NewAskHandler(sessions, convs, engine, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication and session restore need no token
		r.Post("/auth", authHandler.Authenticate)
		r.Get("/session", authHandler.Session)

		// Chat routes require a session token
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/session/home", authHandler.GoHome)
			r.Get("/suggestions", askHandler.Suggestions)
			r.Post("/ask", askHandler.Ask)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", conversationHandler.Create)
				r.Get("/", conversationHandler.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Post("/ask", askHandler.Ask)
				})
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
