package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"resumeBuilder/internal/errcode"
)

// UserRepository 封装用户表的读写。
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 构造 UserRepository。
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// NormalizeEmail 统一邮箱大小写与空白，保证唯一索引按同一形式比较。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create 插入新用户；邮箱已被占用时返回 ErrDuplicateUser 且不写入任何记录。
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&User{}).
		Where("email = ?", user.Email).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count users by email: %w", err)
	}
	if count > 0 {
		return errcode.ErrDuplicateUser
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		// 并发注册时由唯一索引兜底。
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errcode.ErrDuplicateUser
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByEmail 按邮箱查找用户。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error; err != nil {
		return nil, translateNotFound("find user by email", errcode.ResourceUser, err)
	}
	return &user, nil
}

// FindByID 按主键查找用户。
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateNotFound("find user", errcode.ResourceUser, err)
	}
	return &user, nil
}
