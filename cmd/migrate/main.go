package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/tasks"
)

func main() {
	var (
		enqueue   = flag.Bool("enqueue", false, "投递到 worker 队列异步执行，而不是在本进程内执行")
		batchSize = flag.Int("batch-size", 0, "每批扫描的简历数量（可选，默认读 MIGRATION_BATCH_SIZE）")
	)
	flag.Parse()

	cfg := config.MustLoad()
	if *batchSize < 0 {
		log.Fatal("--batch-size must not be negative")
	}
	if *batchSize == 0 {
		*batchSize = cfg.Migration.BatchSize
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *enqueue {
		if err := enqueueMigration(cfg, *batchSize); err != nil {
			log.Fatalf("enqueue migration: %v", err)
		}
		return
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := resume.NewMigrator(database.NewResumeRepository(db), *batchSize, logger).MigrateSkills(ctx)
	if err != nil {
		log.Fatalf("migrate skills (scanned=%d migrated=%d): %v", result.Scanned, result.Migrated, err)
	}

	fmt.Printf("已迁移 %d 份简历（共扫描 %d 份，跳过 %d 份）\n", result.Migrated, result.Scanned, result.Skipped)
}

func enqueueMigration(cfg *config.Config, batchSize int) error {
	if !cfg.Redis.Enabled() {
		return errors.New("redis is required for --enqueue")
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer client.Close()

	task, err := tasks.NewMigrateSkillsTask(batchSize, uuid.NewString())
	if err != nil {
		return err
	}
	info, err := client.Enqueue(task)
	if err != nil {
		return err
	}

	fmt.Printf("迁移任务已投递：task_id=%s queue=%s\n", info.ID, info.Queue)
	return nil
}
