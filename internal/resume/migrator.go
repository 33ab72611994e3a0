package resume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/metrics"
)

// MigrationStore 是迁移所需的存储能力，由 database.ResumeRepository 实现。
type MigrationStore interface {
	ScanAfter(ctx context.Context, afterID string, limit int) ([]database.Resume, error)
	ReplaceContent(ctx context.Context, id string, expectedRevision int, content datatypes.JSON) (bool, error)
}

// MigrationResult 汇总一次迁移。Skipped 包含写入时已被并发修改的文档与内容无法解析的文档。
type MigrationResult struct {
	Scanned  int `json:"scanned"`
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
}

// Migrator 将旧版文本形式的 skills 迁移为字符串列表。
// 每份文档独立处理，中断后重跑会从头扫描并只改写仍是文本形式的文档。
type Migrator struct {
	store     MigrationStore
	batchSize int
	logger    *slog.Logger
}

// NewMigrator 构造 Migrator。
func NewMigrator(store MigrationStore, batchSize int, logger *slog.Logger) *Migrator {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: store, batchSize: batchSize, logger: logger}
}

// MigrateSkills 扫描全部简历并改写文本形式的 skills。
func (m *Migrator) MigrateSkills(ctx context.Context) (MigrationResult, error) {
	var result MigrationResult
	defer func() {
		metrics.AddMigrated("migrated", result.Migrated)
		metrics.AddMigrated("skipped", result.Skipped)
	}()

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := m.store.ScanAfter(ctx, afterID, m.batchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			r := &batch[i]
			result.Scanned++

			content, changed, err := migrateSkillsContent(r.Content)
			if err != nil {
				result.Skipped++
				m.logger.Warn("skip resume with unreadable content", slog.String("resume_id", r.ID), slog.Any("error", err))
				continue
			}
			if !changed {
				continue
			}

			written, err := m.store.ReplaceContent(ctx, r.ID, r.Revision, content)
			if err != nil {
				return result, err
			}
			if !written {
				result.Skipped++
				m.logger.Info("resume changed during migration, skipped", slog.String("resume_id", r.ID))
				continue
			}
			result.Migrated++
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < m.batchSize {
			break
		}
	}

	m.logger.Info("skills migration finished",
		slog.Int("scanned", result.Scanned),
		slog.Int("migrated", result.Migrated),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// migrateSkillsContent 仅在 skills 为文本时改写；列表形式原样保留。
// 数字按原文保留，避免改写无关分区。
func migrateSkillsContent(raw datatypes.JSON) (datatypes.JSON, bool, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var content map[string]any
	if err := dec.Decode(&content); err != nil {
		return nil, false, fmt.Errorf("decode content: %w", err)
	}

	text, ok := content[skillsKey].(string)
	if !ok {
		return nil, false, nil
	}
	content[skillsKey] = SplitSkills(text)

	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, false, fmt.Errorf("encode content: %w", err)
	}
	return datatypes.JSON(encoded), true, nil
}
