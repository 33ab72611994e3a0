package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resumeBuilder/internal/errcode"
)

// ResumeRepository 封装简历表的读写。所有面向用户的写操作都以 id + user_id 作为条件。
type ResumeRepository struct {
	db *gorm.DB
}

// NewResumeRepository 构造 ResumeRepository。
func NewResumeRepository(db *gorm.DB) *ResumeRepository {
	return &ResumeRepository{db: db}
}

// Create 插入一份新简历。
func (r *ResumeRepository) Create(ctx context.Context, resume *Resume) error {
	if err := r.db.WithContext(ctx).Create(resume).Error; err != nil {
		return fmt.Errorf("create resume: %w", err)
	}
	return nil
}

// FindOwned 返回属于 ownerID 的简历；不存在或不属于该用户时返回 ErrNotFound。
func (r *ResumeRepository) FindOwned(ctx context.Context, ownerID uint, id string) (*Resume, error) {
	var resume Resume
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&resume).Error
	if err != nil {
		return nil, translateNotFound("find resume", errcode.ResourceResume, err)
	}
	return &resume, nil
}

// FindPublic 返回公开的简历；未公开与不存在不作区分。
func (r *ResumeRepository) FindPublic(ctx context.Context, id string) (*Resume, error) {
	var resume Resume
	err := r.db.WithContext(ctx).
		Where("id = ? AND public = ?", id, true).
		First(&resume).Error
	if err != nil {
		return nil, translateNotFound("find public resume", errcode.ResourceResume, err)
	}
	return &resume, nil
}

// ListByOwner 按更新时间倒序列出用户的全部简历。
func (r *ResumeRepository) ListByOwner(ctx context.Context, ownerID uint) ([]Resume, error) {
	var resumes []Resume
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return resumes, nil
}

// UpdateOwned 在单个事务内锁定目标行、调用 mutate 修改内存副本并写回。
// mutate 返回错误时事务回滚，调用方看不到任何部分写入。
func (r *ResumeRepository) UpdateOwned(ctx context.Context, ownerID uint, id string, mutate func(*Resume) error) (*Resume, error) {
	var updated Resume
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Resume
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, ownerID).
			First(&current).Error; err != nil {
			return translateNotFound("lock resume", errcode.ResourceResume, err)
		}

		if err := mutate(&current); err != nil {
			return err
		}

		result := tx.Model(&Resume{}).
			Where("id = ? AND user_id = ?", id, ownerID).
			Updates(map[string]any{
				"title":    current.Title,
				"public":   current.Public,
				"content":  current.Content,
				"revision": gorm.Expr("revision + ?", 1),
			})
		if result.Error != nil {
			return fmt.Errorf("update resume: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errcode.NotFound(errcode.ResourceResume)
		}

		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&updated).Error; err != nil {
			return translateNotFound("reload resume", errcode.ResourceResume, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteOwned 删除属于 ownerID 的简历；未命中时返回 ErrNotFound。
func (r *ResumeRepository) DeleteOwned(ctx context.Context, ownerID uint, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&Resume{})
	if result.Error != nil {
		return fmt.Errorf("delete resume: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errcode.NotFound(errcode.ResourceResume)
	}
	return nil
}

// ScanAfter 以主键升序返回 afterID 之后的一批简历，用于可续跑的全表扫描。
func (r *ResumeRepository) ScanAfter(ctx context.Context, afterID string, limit int) ([]Resume, error) {
	var resumes []Resume
	if err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("scan resumes after %q: %w", afterID, err)
	}
	return resumes, nil
}

// ReplaceContent 仅当 revision 仍为 expectedRevision 时写入新内容。
// 返回 false 表示期间已有其他写入，本次跳过。
func (r *ResumeRepository) ReplaceContent(ctx context.Context, id string, expectedRevision int, content datatypes.JSON) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Resume{}).
		Where("id = ? AND revision = ?", id, expectedRevision).
		Updates(map[string]any{
			"content":  content,
			"revision": gorm.Expr("revision + ?", 1),
		})
	if result.Error != nil {
		return false, fmt.Errorf("replace content of %q: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func translateNotFound(op, resource string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errcode.NotFound(errcode.ResourceResume)
	}
	return fmt.Errorf("%s: %w", op, err)
}
