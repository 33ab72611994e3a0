package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/metrics"
	"resumeBuilder/internal/tasks"
	"resumeBuilder/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if !cfg.Redis.Enabled() {
		log.Fatal("worker requires redis (REDIS_HOST)")
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}
	// 迁移假定单写者，因此只开一个并发。
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
	})

	migrateHandler := worker.NewMigrateSkillsHandler(database.NewResumeRepository(db), cfg.Migration.BatchSize, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeMigrateSkills, migrateHandler)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
