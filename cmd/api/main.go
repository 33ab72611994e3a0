package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/api"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/enrich"
	"resumeBuilder/internal/notify"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("api bootstrapping",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("enrichment_provider", cfg.Enrichment.Provider),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database ready")

	authService, err := auth.NewAuthServiceFromFiles(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("close redis client failed", slog.Any("error", err))
			}
		}()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("ping redis: %v", err)
		}
		logger.Info("redis ready", slog.String("addr", cfg.Redis.Addr()))
	} else {
		logger.Warn("redis disabled, login throttling and notifications are off")
	}

	uploader, err := newUploader(cfg)
	if err != nil {
		log.Fatalf("init image uploader: %v", err)
	}

	var scanner enrich.Scanner
	if cfg.Upload.ClamdAddr != "" {
		scanner = enrich.NewClamdScanner(cfg.Upload.ClamdAddr)
	}

	resumeService := resume.NewService(
		database.NewResumeRepository(db),
		uploader,
		scanner,
		notify.NewPublisher(redisClient),
		logger,
		resume.ServiceConfig{
			Folder:        cfg.Enrichment.Folder,
			BaseDirective: cfg.Enrichment.BaseDirective,
			Timeout:       cfg.Enrichment.Timeout,
			StagingDir:    cfg.Upload.StagingDir,
		},
	)

	var events api.EventSubscriber
	if redisClient != nil {
		events = notify.NewSubscriber(redisClient)
	}

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Dependencies{
		Resumes:        resumeService,
		Users:          database.NewUserRepository(db),
		Auth:           authService,
		Redis:          redisClient,
		Events:         events,
		Logger:         logger,
		AllowedOrigins: cfg.API.AllowedOrigins,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		LoginLimits: api.LoginLimits{
			RatePerHour:   cfg.Auth.LoginRateLimitPerHour,
			LockThreshold: cfg.Auth.LoginLockThreshold,
			LockTTL:       cfg.Auth.LoginLockTTL,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Enrichment.Timeout+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
	logger.Info("api stopped")
}

func newUploader(cfg *config.Config) (enrich.Uploader, error) {
	switch cfg.Enrichment.Provider {
	case "minio":
		storageClient, err := storage.NewClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return enrich.NewMinIOUploader(storageClient), nil
	default:
		return enrich.NewImageKitUploader(cfg.ImageKit.UploadURL, cfg.ImageKit.PrivateKey, nil)
	}
}
