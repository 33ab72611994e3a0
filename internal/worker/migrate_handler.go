package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/tasks"
)

// MigrateSkillsHandler 消费技能字段迁移任务。
type MigrateSkillsHandler struct {
	store     resume.MigrationStore
	batchSize int
	logger    *slog.Logger
}

// NewMigrateSkillsHandler 创建任务处理器；batchSize 为任务未指定批大小时的默认值。
func NewMigrateSkillsHandler(store resume.MigrationStore, batchSize int, logger *slog.Logger) *MigrateSkillsHandler {
	return &MigrateSkillsHandler{
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。迁移可重入，失败后由 asynq 重试即可收敛。
func (h *MigrateSkillsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseMigrateSkillsPayload(t)
	if err != nil {
		h.logger.Error("invalid migrate task payload", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	batchSize := payload.BatchSize
	if batchSize == 0 {
		batchSize = h.batchSize
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("batch_size", batchSize),
	)
	log.Info("starting skills migration task")

	result, err := resume.NewMigrator(h.store, batchSize, log).MigrateSkills(ctx)
	if err != nil {
		if isFinalAsynqAttempt(ctx) {
			log.Error("skills migration gave up",
				slog.Int("scanned", result.Scanned),
				slog.Int("migrated", result.Migrated),
				slog.Any("error", err),
			)
		} else {
			log.Warn("skills migration failed, will retry", slog.Any("error", err))
		}
		return err
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
