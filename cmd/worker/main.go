package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nori/caliper/internal/config"
	"github.com/nori/caliper/internal/logger"
	"github.com/nori/caliper/internal/repository"
	"github.com/nori/caliper/internal/service"
	"github.com/nori/caliper/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "caliper-worker",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	workers := flag.Int("workers", 0, "Number of upgrade consumers (0 uses config)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}

	appLogger.WithFields(logger.Fields{
		"workers":       cfg.Pipeline.Workers,
		"poll_interval": cfg.Pipeline.PollInterval.String(),
	}).Info("Starting upgrade worker")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	reportRepo := repository.NewReportRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	vectorRepo, err := repository.NewVectorRepository(&repository.VectorConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize vector repository")
	}
	defer vectorRepo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := vectorRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure vector collection")
	}

	// Initialize S3-compatible photo storage (supports R2, MinIO, S3)
	photoStorage, err := storage.NewS3Storage(&storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize photo storage")
	}
	if err := photoStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	// Initialize services
	visionService := service.NewVisionService(&service.VisionClientConfig{
		Provider:  cfg.Vision.Provider,
		Model:     cfg.Vision.Model,
		DeepModel: cfg.Vision.DeepModel,
		APIKey:    cfg.Vision.APIKey,
		BaseURL:   cfg.Vision.BaseURL,
	})
	marketService := service.NewMarketService(&service.MarketClientConfig{
		BaseURL: cfg.Market.BaseURL,
		APIKey:  cfg.Market.APIKey,
		Timeout: cfg.Market.Timeout,
	})
	embeddingService := service.NewEmbeddingService(&service.EmbeddingClientConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
	})
	similarityService := service.NewSimilarityService(embeddingService, vectorRepo, cfg.Pipeline.SimilarThreshold)

	upgradeService := service.NewUpgradeService(
		reportRepo,
		taskRepo,
		photoStorage,
		visionService,
		marketService,
		similarityService,
		service.UpgradeConfig{
			Workers:      cfg.Pipeline.Workers,
			PollInterval: cfg.Pipeline.PollInterval,
			StaleAfter:   cfg.Pipeline.StaleClaimAfter,
			MaxAttempts:  cfg.Pipeline.MaxAttempts,
		},
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	upgradeService.Run(ctx)
	appLogger.Info("Worker exited")
}
