package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/config"
	"github.com/mmeshcher/qrtracker/internal/geo"
	"github.com/mmeshcher/qrtracker/internal/handler"
	"github.com/mmeshcher/qrtracker/internal/messaging"
	"github.com/mmeshcher/qrtracker/internal/middleware"
	"github.com/mmeshcher/qrtracker/internal/repository"
	"github.com/mmeshcher/qrtracker/internal/service"
	"github.com/mmeshcher/qrtracker/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		bootstrap, _ := zap.NewDevelopment()
		bootstrap.Fatal("Configuration error", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	sugar.Infow(
		"Starting QR tracker service",
	)

	sugar.Infow(
		"Configuration loaded",
		"server_address", cfg.ServerAddress,
		"base_url", cfg.BaseURL,
		"database", cfg.DatabaseDSN != "",
		"s3_bucket", cfg.S3.Bucket,
		"nats", cfg.NATSURL != "",
	)
	if cfg.SecretGenerated {
		sugar.Warnw("SECRET_KEY is not set, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := newRepository(cfg, logger)
	if err != nil {
		sugar.Fatalw("Failed to initialize repository", "error", err)
	}
	defer repo.Close()

	store, err := newImageStore(ctx, cfg)
	if err != nil {
		sugar.Fatalw("Failed to initialize image store", "error", err)
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		sugar.Fatalw("Failed to connect to NATS", "error", err)
	}
	defer publisher.Close()

	resolver := geo.NewIPAPIResolver(cfg.GeoAPIURL, cfg.GeoTimeout, logger)
	recorder := service.NewScanRecorder(repo, publisher, logger, cfg.ScanQueueSize, cfg.ScanWorkers)
	qrService := service.NewQRCodeService(repo, store, cfg.BaseURL, logger)
	dispatcher := service.NewDispatcher(repo, resolver, recorder, logger)
	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey, logger)

	h := handler.NewHandler(qrService, dispatcher, authMiddleware, repo, logger)

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		sugar.Infow(
			"Server starting",
			"address", cfg.ServerAddress,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw(err.Error(), "event", "start server")
		}
	}()

	<-ctx.Done()
	sugar.Infow("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("Server shutdown failed", "error", err)
	}

	recorder.Close()
	qrService.Wait()

	sugar.Infow("Server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == config.LogLevelProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newRepository(cfg *config.Config, logger *zap.Logger) (repository.Repository, error) {
	if cfg.DatabaseDSN == "" {
		logger.Info("DATABASE_DSN is empty, keeping data in memory")
		return repository.NewMemoryRepository(), nil
	}
	return repository.NewPostgresRepository(cfg.DatabaseDSN, cfg.MigrationsPath, logger)
}

func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if !cfg.S3.Enabled() {
		return storage.NopStore{}, nil
	}
	return storage.NewS3Store(ctx, storage.S3Config{
		Bucket:         cfg.S3.Bucket,
		Region:         cfg.S3.Region,
		AccessKeyID:    cfg.S3.AccessKeyID,
		SecretKey:      cfg.S3.SecretKey,
		Endpoint:       cfg.S3.Endpoint,
		BaseURL:        cfg.S3.BaseURL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
}

func newPublisher(cfg *config.Config, logger *zap.Logger) (messaging.Publisher, error) {
	if cfg.NATSURL == "" {
		return messaging.NopPublisher{}, nil
	}
	return messaging.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
}
