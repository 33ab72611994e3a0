package enrich

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"resumeBuilder/internal/storage"
)

// objectStore 是 MinIOUploader 依赖的存储能力，由 storage.Client 实现。
type objectStore interface {
	UploadFile(ctx context.Context, objectName string, req storage.PutRequest) error
	PublicURL(objectKey string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// ErrTransformationUnsupported 表示托管方无法执行请求的变换指令。
var ErrTransformationUnsupported = errors.New("image transformation not supported by provider")

// MinIOUploader 将原图原样托管在自建 MinIO 中，不做任何图像变换。
// 带变换指令的请求直接失败，由调用方按头像处理失败对待。
type MinIOUploader struct {
	store objectStore
}

// NewMinIOUploader 构造基于对象存储的 Uploader。
func NewMinIOUploader(store objectStore) *MinIOUploader {
	return &MinIOUploader{store: store}
}

// Upload 实现 Uploader。
func (u *MinIOUploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.File == nil {
		return nil, errors.New("image body is required")
	}
	if directive := strings.TrimSpace(req.Transformation); directive != "" {
		return nil, fmt.Errorf("%w: %q", ErrTransformationUnsupported, directive)
	}

	objectKey := path.Join(strings.Trim(req.Folder, "/"), req.FileName)
	err := u.store.UploadFile(ctx, objectKey, storage.PutRequest{
		Body:        req.File,
		Size:        req.Size,
		ContentType: req.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	publicURL, err := u.store.PublicURL(objectKey)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		// 调用方不会再引用该对象，清理掉避免留下孤儿文件。
		u.removeOrphan(ctx, objectKey)
		return nil, err
	}
	return &UploadResult{URL: publicURL, FileID: objectKey}, nil
}

func (u *MinIOUploader) removeOrphan(ctx context.Context, objectKey string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = u.store.DeleteObject(ctx, objectKey)
}
