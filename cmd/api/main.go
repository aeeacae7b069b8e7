// Package main is the entry point for the conversation API server.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/supportstack/conversation-core/internal/channel"
	"github.com/supportstack/conversation-core/internal/compose"
	"github.com/supportstack/conversation-core/internal/config"
	"github.com/supportstack/conversation-core/internal/dialog"
	"github.com/supportstack/conversation-core/internal/events"
	"github.com/supportstack/conversation-core/internal/handler"
	"github.com/supportstack/conversation-core/internal/integration"
	"github.com/supportstack/conversation-core/internal/llm"
	"github.com/supportstack/conversation-core/internal/middleware"
	"github.com/supportstack/conversation-core/internal/nlu"
	"github.com/supportstack/conversation-core/internal/orchestrator"
	"github.com/supportstack/conversation-core/internal/store"
	"github.com/supportstack/conversation-core/pkg/logger"
	"github.com/supportstack/conversation-core/pkg/tracing"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting conversation API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "conversation-core", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Session store
	var sessions store.SessionStore
	if cfg.StorePath != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.StorePath, log)
		if err != nil {
			log.Error("failed to open session store", zap.Error(err))
			os.Exit(1)
		}
		sessions = sqlStore
		log.Info("using sqlite session store", zap.String("path", cfg.StorePath))
	} else {
		sessions = store.NewMemoryStore()
		log.Info("using in-memory session store")
	}
	defer sessions.Close()

	// Event publishing over NATS JetStream, optional
	var publisher events.Publisher
	var eventsClient *events.Client
	if cfg.EventsEnabled {
		eventsClient, err = events.Connect(events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer eventsClient.Close()

		publisher, err = events.NewJetStreamPublisher(ctx, eventsClient)
		if err != nil {
			log.Error("failed to set up event stream", zap.Error(err))
			os.Exit(1)
		}
	} else {
		publisher = events.NewNopPublisher(log)
	}

	// LLM client, optional. Without one the composer and intent refiner
	// fall back to canned behavior.
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, LLM features disabled", zap.Error(err))
		}
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client, LLM features disabled", zap.Error(err))
		}
	}

	// Core pipeline
	var refiner nlu.Refiner
	if llmClient != nil {
		refiner = nlu.NewLLMRefiner(llmClient, cfg.DefaultModel)
	}

	channels := channel.NewRegistry(cfg.MaxMessageBytes)
	pipeline := nlu.NewPipeline(cfg.ConfidenceThreshold, refiner, log)
	contexts := dialog.NewContextManager(cfg.ContextWindow, cfg.SentimentDecay, cfg.NegativeTurnFloor)
	policy := dialog.NewPolicy(cfg.ConfidenceThreshold, cfg.SentimentFloor, cfg.NegativeStreakLimit, cfg.ClarifyRetryLimit)

	integrations := integration.NewRegistry(cfg.IntegrationTimeout)
	registerDemoIntegrations(integrations)

	composer := compose.New(llmClient, integrations, cfg.DefaultModel, log)

	orch := orchestrator.New(cfg, sessions, channels, pipeline, contexts, policy, composer, publisher, log)
	defer orch.Shutdown()

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	orch.StartReaper(reaperCtx)

	// Handlers
	healthHandler := handler.NewHealthHandler(sessions, eventsClient)
	turnHandler := handler.NewTurnHandler(orch, log)
	conversationHandler := handler.NewConversationHandler(orch, log)
	analyticsHandler := handler.NewAnalyticsHandler(sessions, log)

	// Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/turns", turnHandler.Handle)

		r.Route("/conversations/{channel}/{userID}", func(r chi.Router) {
			r.Get("/", conversationHandler.Get)
			r.With(middleware.RequireScope("operator")).Post("/resolve", conversationHandler.Resolve)
			r.Post("/close", conversationHandler.Close)
		})

		r.Get("/analytics/summary", analyticsHandler.Summary)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// registerDemoIntegrations wires stand-in backend actions so the full turn
// loop works out of the box. Deployments replace these with real clients.
func registerDemoIntegrations(reg *integration.Registry) {
	reg.RegisterFunc("order_lookup", func(ctx context.Context, args map[string]string) (*integration.Result, error) {
		return &integration.Result{
			Slots: map[string]string{"order_status": "in_transit"},
			Facts: map[string]string{
				"order " + args["order_id"]: "in transit, expected to arrive within 3-5 business days",
			},
		}, nil
	})

	reg.RegisterFunc("order_cancel", func(ctx context.Context, args map[string]string) (*integration.Result, error) {
		return &integration.Result{
			Facts: map[string]string{
				"order " + args["order_id"]: "cancellation submitted, confirmation email on its way",
			},
		}, nil
	})

	reg.RegisterFunc("invoice_lookup", func(ctx context.Context, args map[string]string) (*integration.Result, error) {
		return &integration.Result{
			Facts: map[string]string{
				"invoice " + args["invoice_id"]: "issued this billing cycle, payable within 30 days",
			},
		}, nil
	})
}
