package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/amillerrr/media-ingest/internal/api"
	"github.com/amillerrr/media-ingest/internal/auth"
	"github.com/amillerrr/media-ingest/internal/config"
	"github.com/amillerrr/media-ingest/internal/events"
	"github.com/amillerrr/media-ingest/internal/health"
	"github.com/amillerrr/media-ingest/internal/media"
	"github.com/amillerrr/media-ingest/internal/observability"
	"github.com/amillerrr/media-ingest/internal/storage"
)

const (
	ShutdownTimeout       = 30 * time.Second
	TracerShutdownTimeout = 5 * time.Second
	AWSConfigTimeout      = 10 * time.Second
)

func main() {
	// Initialize logger
	log := observability.NewLogger()
	slog.SetDefault(log)

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize tracer
	shutdownTracer, err := observability.InitTracer(context.Background(), "media-ingest-api", cfg)
	if err != nil {
		log.Error("Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	// Initialize AWS clients
	ctx, cancel := context.WithTimeout(context.Background(), AWSConfigTimeout)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	s3Client := s3.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)

	// Initialize storage layers
	objectStore := storage.NewObjectStore(s3Client, cfg.AWS.MediaBucket)
	assetRepo, err := storage.NewAssetRepository(dynamoClient, cfg.AWS.AssetsTable)
	if err != nil {
		log.Error("Failed to initialize asset repository", "error", err)
		os.Exit(1)
	}
	log.Info("Storage initialized", "bucket", cfg.AWS.MediaBucket, "table", cfg.AWS.AssetsTable)

	// Initialize event publisher if a queue is configured
	var publisher events.Publisher
	if cfg.AWS.EventsQueueURL != "" {
		publisher = events.NewSQSPublisher(sqsClient, cfg.AWS.EventsQueueURL)
	}

	// Initialize the ingest pipeline
	tempStore, err := media.NewTempStore(cfg.Pipeline.TempDir, log)
	if err != nil {
		log.Error("Failed to initialize temp store", "error", err)
		os.Exit(1)
	}
	runner := media.NewExecRunner(cfg.Pipeline.ToolTimeout)
	pipeline := media.NewPipeline(&media.PipelineConfig{
		TempStore: tempStore,
		Prober:    media.NewProber(runner),
		Remuxer:   media.NewRemuxer(runner),
		Objects:   objectStore,
		Assets:    assetRepo,
		Events:    publisher,
		Logger:    log,
	})

	// Initialize JWT service
	jwtSecret, err := cfg.GetJWTSecret()
	if err != nil {
		log.Error("Failed to get JWT secret", "error", err)
		os.Exit(1)
	}
	jwtService, err := auth.NewJWTService(jwtSecret)
	if err != nil {
		log.Error("Failed to create JWT service", "error", err)
		os.Exit(1)
	}

	// Initialize rate limiter
	rateLimiter := auth.NewRateLimiter(auth.RateLimiterConfig{
		MaxFailedAttempts: cfg.API.RateLimitMaxFailures,
		Window:            cfg.API.RateLimitWindow,
	})

	// Initialize health checker
	healthConfig := health.DefaultConfig("media-ingest-api", log)
	healthConfig.S3Client = s3Client
	healthConfig.DynamoDBClient = dynamoClient
	healthConfig.SQSClient = sqsClient
	healthConfig.S3Bucket = cfg.AWS.MediaBucket
	healthConfig.DynamoDBTable = cfg.AWS.AssetsTable
	healthConfig.SQSQueueURL = cfg.AWS.EventsQueueURL
	healthChecker := health.NewChecker(healthConfig)

	// Create and start server
	server, err := api.NewServer(&api.ServerConfig{
		Config:        cfg,
		Logger:        log,
		Ingester:      pipeline,
		Assets:        assetRepo,
		Presigner:     objectStore,
		JWTService:    jwtService,
		RateLimiter:   rateLimiter,
		HealthChecker: healthChecker,
	})
	if err != nil {
		log.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server shutdown complete")
}
