package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/config"
	"github.com/fekuna/omnipos-inventory-sync/internal/auth"
	"github.com/fekuna/omnipos-inventory-sync/internal/enrichment"
	"github.com/fekuna/omnipos-inventory-sync/internal/platform"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile"
	"github.com/fekuna/omnipos-inventory-sync/internal/webhook"
	"github.com/fekuna/omnipos-inventory-sync/pkg/broker"
	"github.com/fekuna/omnipos-inventory-sync/pkg/cache"
	"github.com/fekuna/omnipos-inventory-sync/pkg/database/postgres"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"github.com/fekuna/omnipos-inventory-sync/pkg/search"
	"github.com/fekuna/omnipos-inventory-sync/pkg/telemetry"

	histRepoPkg "github.com/fekuna/omnipos-inventory-sync/internal/history/repository"
	histUCPkg "github.com/fekuna/omnipos-inventory-sync/internal/history/usecase"

	invRepoPkg "github.com/fekuna/omnipos-inventory-sync/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-inventory-sync/internal/inventory/usecase"

	syncH "github.com/fekuna/omnipos-inventory-sync/internal/reconcile/handler"
	syncJobPkg "github.com/fekuna/omnipos-inventory-sync/internal/reconcile/job"
	syncUCPkg "github.com/fekuna/omnipos-inventory-sync/internal/reconcile/usecase"

	webhookListenerPkg "github.com/fekuna/omnipos-inventory-sync/internal/webhook/listener"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2.5 Initialize Tracing
	telemetryConfig := &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	}
	tp, err := telemetry.InitTracer(ctx, telemetryConfig)
	if err != nil {
		appLogger.Warn("Could not initialize tracing", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	mp, err := telemetry.InitMeter(ctx, telemetryConfig)
	if err != nil {
		appLogger.Warn("Could not initialize metrics", zap.Error(err))
	} else if mp != nil {
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = mp.Shutdown(shutdownCtx)
		}()
	}

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Repositories
	invRepo := invRepoPkg.NewPGRepository(db)
	histRepo := histRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5.5 Initialize Elasticsearch
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch (search falls back to the database)", zap.Error(err))
		esClient = nil
	} else {
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 5.8 Initialize Enrichment Client
	var enricher reconcile.Enricher
	if cfg.Enrichment.URL != "" {
		enricher = enrichment.NewClient(&enrichment.Config{
			URL:           cfg.Enrichment.URL,
			APIKey:        cfg.Enrichment.APIKey,
			Timeout:       cfg.Enrichment.Timeout,
			RatePerSecond: cfg.Enrichment.RatePerSecond,
		})
		appLogger.Info("Enrichment enabled", zap.String("url", cfg.Enrichment.URL))
	}

	// 6. Initialize UseCases
	invUC := invUCPkg.NewInventoryUseCase(invRepo, redisClient, esClient, appLogger)
	histUC := histUCPkg.NewHistoryUseCase(histRepo, appLogger)
	syncUC := syncUCPkg.NewReconcileUseCase(invRepo, histRepo, enricher, redisClient, invUC, &syncUCPkg.Config{
		BatchSize:   cfg.Sync.BatchSize,
		BatchDelay:  cfg.Sync.BatchDelay,
		DedupWindow: cfg.Sync.DedupWindow,
	}, appLogger)

	// 6.5 Initialize Platform Adapters, Poll Job and Webhook Listener
	targets, sources := buildPlatforms(cfg)
	for _, src := range sources {
		if src.Secret == "" {
			appLogger.Warn("Webhook secret not configured, deliveries will be rejected",
				zap.String("platform", src.Adapter.Platform()))
		}
	}

	if len(targets) > 0 {
		pollJob := syncJobPkg.NewPollJob(syncUC, targets, syncJobPkg.Config{
			Interval:         cfg.Sync.PollInterval,
			Timeout:          cfg.Sync.JobTimeout,
			EnableEnrichment: cfg.Sync.EnableEnrichment,
		}, appLogger)
		go pollJob.Start(ctx)
	} else {
		appLogger.Warn("No platforms configured, poll sync disabled")
	}

	if cfg.Kafka.Enabled {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

		receiver := webhook.NewReceiver(syncUC, sources, cfg.Sync.EnableEnrichment, appLogger)
		webhookListener := webhookListenerPkg.NewWebhookListener(kafkaConsumer, receiver, appLogger)
		go webhookListener.Start(ctx)
	}

	// 7. Initialize Handlers
	syncHandler := syncH.NewSyncHandler(syncUC, histUC, invUC, appLogger)

	// 8. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(auth.ContextInterceptor()),
	)

	// Register Services
	syncH.RegisterSyncServiceServer(grpcServer, syncHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(syncH.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func buildPlatforms(cfg *config.Config) ([]syncJobPkg.Target, []webhook.Source) {
	var (
		targets []syncJobPkg.Target
		sources []webhook.Source
	)
	timeout := cfg.Platforms.AdapterTimeout
	add := func(tenantID, secret string, a platform.Adapter) {
		targets = append(targets, syncJobPkg.Target{TenantID: tenantID, Adapter: a})
		sources = append(sources, webhook.Source{TenantID: tenantID, Secret: secret, Adapter: a})
	}

	if bc := cfg.Platforms.BigCommerce; bc.StoreHash != "" && bc.TenantID != "" {
		add(bc.TenantID, bc.ClientSecret, platform.NewBigCommerceAdapter(&platform.BigCommerceConfig{
			StoreHash:   bc.StoreHash,
			AccessToken: bc.AccessToken,
			Timeout:     timeout,
		}))
	}
	if sh := cfg.Platforms.Shopify; sh.ShopDomain != "" && sh.TenantID != "" {
		add(sh.TenantID, sh.WebhookSecret, platform.NewShopifyAdapter(&platform.ShopifyConfig{
			ShopDomain:  sh.ShopDomain,
			AccessToken: sh.AccessToken,
			Timeout:     timeout,
		}))
	}
	if cl := cfg.Platforms.Clover; cl.MerchantID != "" && cl.TenantID != "" {
		add(cl.TenantID, cl.WebhookSecret, platform.NewCloverAdapter(&platform.CloverConfig{
			MerchantID:  cl.MerchantID,
			AccessToken: cl.AccessToken,
			Timeout:     timeout,
		}))
	}
	if g := cfg.Platforms.Generic; g.URL != "" && g.TenantID != "" {
		// Generic feeds have no webhooks.
		targets = append(targets, syncJobPkg.Target{
			TenantID: g.TenantID,
			Adapter: platform.NewGenericAdapter(&platform.GenericConfig{
				URL:     g.URL,
				APIKey:  g.APIKey,
				StoreID: g.StoreID,
				Timeout: timeout,
			}),
		})
	}
	return targets, sources
}
