package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Name         string   `gorm:"size:128"`
	Email        string   `gorm:"uniqueIndex;size:255"`
	PasswordHash string   `gorm:"size:255"`
	Resumes      []Resume `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume 表示用户创建的简历。
// Title 与 Public 单独成列，其余所有分区（personal_info、skills 等）保存在 Content(JSONB) 中。
// Revision 每次成功写入递增；用户更新不以它作条件（最后写入者胜出），批量迁移以它作条件写入。
type Resume struct {
	ID        string         `gorm:"primaryKey;size:36"`
	UserID    uint           `gorm:"index;not null"`
	Title     string         `gorm:"size:255"`
	Public    bool           `gorm:"not null;default:false"`
	Content   datatypes.JSON `gorm:"type:jsonb"`
	Revision  int            `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate 为新简历分配不透明的 UUID。
func (r *Resume) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if len(r.Content) == 0 {
		r.Content = datatypes.JSON("{}")
	}
	return nil
}
