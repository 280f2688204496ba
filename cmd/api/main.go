package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/trustx/internal/analysis"
	"github.com/richxcame/trustx/internal/detection"
	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/registry"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/richxcame/trustx/migrations"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/config"
	"github.com/richxcame/trustx/pkg/database"
	"github.com/richxcame/trustx/pkg/eventbus"
	"github.com/richxcame/trustx/pkg/health"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/middleware"
	"github.com/richxcame/trustx/pkg/ratelimit"
	"github.com/richxcame/trustx/pkg/redis"
	"github.com/richxcame/trustx/pkg/secrets"
	"github.com/richxcame/trustx/pkg/storage"
	"github.com/richxcame/trustx/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "trustx-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "trustx-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	resolver := secrets.NewManager(secrets.Config{
		Vault: secrets.VaultConfig{
			Address:   cfg.Secrets.VaultAddress,
			Token:     cfg.Secrets.VaultToken,
			MountPath: cfg.Secrets.VaultMount,
		},
		AWS: secrets.AWSConfig{Region: cfg.Secrets.AWSRegion},
	})
	if err := cfg.ResolveSecrets(ctx, resolver); err != nil {
		return err
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     cfg.Server.Version,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceName, cfg.Server.Version, cfg.Server.Environment)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	// Connect to PostgreSQL
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(pool)

	if cfg.Database.AutoMigrate {
		db, err := database.OpenSQL(&cfg.Database)
		if err != nil {
			return fmt.Errorf("open migration connection: %w", err)
		}
		err = database.Migrate(db, migrations.FS)
		db.Close()
		if err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	// Connect to Redis
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	publisher, natsConn, err := eventbus.Connect(cfg.NATS, serviceName)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var evidence storage.Storage
	if cfg.Detection.EvidenceUploads {
		evidence, err = storage.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("init evidence storage: %w", err)
		}
	}

	weights := risk.DefaultWeights()
	if cfg.Detection.WeightsFile != "" {
		weights, err = risk.LoadWeights(cfg.Detection.WeightsFile)
		if err != nil {
			return err
		}
		logger.Info("loaded scoring weights", zap.String("file", cfg.Detection.WeightsFile))
	}
	textTable, _ := weights.For(risk.KindText)

	deps := signals.Dependencies{
		TextTable: textTable,
		Fetcher: signals.NewHTTPPageFetcher(signals.PageFetcherConfig{
			Timeout:   cfg.Detection.PageFetchTimeout,
			UserAgent: cfg.Detection.UserAgent,
		}),
		PageTextLimit: cfg.Detection.PageTextLimit,
	}

	var ocr signals.OCR
	if cfg.OpenAI.APIKey != "" {
		client := signals.NewOpenAIClient(signals.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			VisionModel: cfg.OpenAI.VisionModel,
		})
		if cfg.OpenAI.ClassifierOn {
			deps.Classifier = signals.NewClassifier(client, cfg.OpenAI.Model)
		}
		if cfg.OpenAI.OCROn {
			ocr = signals.NewVisionOCR(client, cfg.OpenAI.VisionModel)
		}
	} else {
		logger.Warn("OPENAI_API_KEY not set; classifier and OCR are unavailable")
	}
	extractors, _ := signals.Build(deps)

	// Advisor registry
	var web registry.WebSourceInterface
	if cfg.Registry.WebLookupEnabled {
		web = registry.NewWebSource(registry.WebSourceConfig{
			BaseURL:        cfg.Registry.BaseURL,
			Timeout:        cfg.Registry.Timeout,
			UserAgent:      cfg.Registry.UserAgent,
			RequestsPerSec: cfg.Registry.RequestsPerSec,
		})
	}
	registryService := registry.NewService(
		registry.NewRepository(pool),
		registry.NewRedisCache(redisClient, cfg.Registry.CacheTTL),
		web,
		nil,
		cfg.Registry.CacheTTL,
	)
	if err := registryService.Seed(ctx); err != nil {
		logger.Warn("failed to seed advisor registry", zap.Error(err))
	}

	pipeline, err := detection.New(detection.Options{
		Weights:          weights,
		Extractors:       extractors,
		OCR:              ocr,
		Registry:         registryService,
		DecodeQR:         signals.DecodeQR,
		PipelineTimeout:  cfg.Detection.PipelineTimeout,
		ExtractorTimeout: cfg.Detection.ExtractorTimeout,
	})
	if err != nil {
		return fmt.Errorf("build detection pipeline: %w", err)
	}

	fingerprintService := fingerprint.NewService(fingerprint.NewRepository(pool), publisher, cfg.Fingerprint.Threshold)
	registryService.WithFingerprinter(fingerprintService)

	analysisService := analysis.NewService(analysis.Config{
		Repo:         analysis.NewRepository(pool),
		Detector:     pipeline,
		Fingerprints: fingerprintService,
		Registry:     registryService,
		Storage:      evidence,
		Cache:        redisClient,
		Publisher:    publisher,
		HistorySize:  cfg.Detection.HistoryDefaultSize,
	})

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	if cfg.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders(cfg.Server.Environment == "production"))
	router.Use(middleware.MaxBodySize(cfg.Server.MaxBodyBytes))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.Server.CORSOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.CorrelationIDHeader, middleware.LegacyCorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	checks := map[string]func() error{
		"database": health.NewCachedChecker(health.PoolChecker(pool), 5*time.Second).Check,
		"redis":    health.NewCachedChecker(health.RedisChecker(redisClient.Client), 5*time.Second).Check,
	}
	if natsConn != nil {
		checks["nats"] = health.NATSChecker(natsConn)
	}
	healthHandler := common.HealthCheckWithDeps(serviceName, cfg.Server.Version, checks)

	// Health check and metrics
	router.GET("/health", healthHandler)
	router.GET("/healthz", common.HealthCheck(serviceName, cfg.Server.Version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.RateLimit(ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)))
	{
		api.GET("/health", healthHandler)
		analysis.NewHandler(analysisService).RegisterRoutes(api)
		registry.NewHandler(registryService).RegisterRoutes(api)
		fingerprint.NewHandler(fingerprintService).RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
