package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/harborstay/guest-ai-platform/cmd/mainconfig"
	"github.com/harborstay/guest-ai-platform/internal/api/router"
	appconfig "github.com/harborstay/guest-ai-platform/internal/config"
	"github.com/harborstay/guest-ai-platform/internal/conversation"
	"github.com/harborstay/guest-ai-platform/internal/http/handlers"
	"github.com/harborstay/guest-ai-platform/internal/observability/metrics"
	"github.com/harborstay/guest-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting guest-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// LLM clients: Bedrock primary, Gemini fallback.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	bedrockClient := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))

	var fallback conversation.LLMClient
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		fallback = gemini
	}
	llm := conversation.NewFallbackLLMClient(bedrockClient, fallback, logger.Logger)

	// Redis for conversation state.
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// Postgres for tenant profiles and the audit trail.
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	tenants := conversation.NewPostgresTenantStore(db)
	auditStore := conversation.NewPostgresAuditStore(db)
	states := conversation.NewRedisStateStore(rdb, logger.Logger)

	gate := conversation.NewConfigGate(conversation.NewProfileConfiguredData(tenants), logger.Logger)
	validator := conversation.NewValidator()
	monitor := conversation.NewMonitor(auditStore, validator, logger.Logger)
	dedup := conversation.NewDeduplicator(conversation.NewAuditOutboundHistory(auditStore), logger.Logger)

	pipelineMetrics := metrics.NewPipelineMetrics(nil)
	pipeline := conversation.NewPipeline(conversation.PipelineConfig{
		Tenants:       tenants,
		States:        states,
		Gate:          gate,
		Transfers:     conversation.NewTransferDetector(llm, cfg.BedrockModelID, logger.Logger),
		TransferSvc:   conversation.NewTransferService(nil, logger.Logger),
		Rules:         conversation.NewRulesEngine(llm, cfg.BedrockModelID, nil, logger.Logger),
		Selector:      conversation.NewClarificationSelector(logger.Logger),
		Validator:     validator,
		Dedup:         dedup,
		Monitor:       monitor,
		LLM:           llm,
		Model:         cfg.BedrockModelID,
		Metrics:       pipelineMetrics,
		Logger:        logger.Logger,
		DedupLookback: cfg.DedupLookback,
	})

	routerCfg := &router.Config{
		Logger:             logger,
		MessageHandler:     handlers.NewMessageHandler(pipeline, states, logger),
		ReportsHandler:     handlers.NewReportsHandler(monitor, dedup, gate, logger, cfg.DuplicateSweepWindow),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func splitOrigins(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
