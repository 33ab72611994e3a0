package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"strings"
	"time"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/enrich"
	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/metrics"
	"resumeBuilder/internal/notify"
)

// DefaultTitle 用于未提供标题的新建简历。
const DefaultTitle = "Untitled Resume"

// Store 是 Service 依赖的简历存储能力，由 database.ResumeRepository 实现。
type Store interface {
	Create(ctx context.Context, resume *database.Resume) error
	FindOwned(ctx context.Context, ownerID uint, id string) (*database.Resume, error)
	FindPublic(ctx context.Context, id string) (*database.Resume, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]database.Resume, error)
	UpdateOwned(ctx context.Context, ownerID uint, id string, mutate func(*database.Resume) error) (*database.Resume, error)
	DeleteOwned(ctx context.Context, ownerID uint, id string) error
}

// Notifier 发布简历事件；发布失败不影响已完成的写入。
type Notifier interface {
	Publish(ctx context.Context, userID uint, msg notify.Message) error
}

// ServiceConfig 控制头像处理的参数。
type ServiceConfig struct {
	Folder        string
	BaseDirective string
	Timeout       time.Duration
	// StagingDir 为空时使用系统临时目录。
	StagingDir string
}

// ImageInput 是随更新请求上传的原始图片。
type ImageInput struct {
	Reader      io.Reader
	ContentType string
}

// UpdateInput 描述一次简历更新。OwnerID 必须来自已认证的身份，而非请求体。
type UpdateInput struct {
	OwnerID          uint
	ResumeID         string
	Payload          Payload
	Image            *ImageInput
	RemoveBackground bool
	CorrelationID    string
}

// Service 编排简历的创建、读取、更新与删除。
type Service struct {
	store    Store
	uploader enrich.Uploader
	scanner  enrich.Scanner
	notifier Notifier
	logger   *slog.Logger
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService 构造 Service。uploader、scanner、notifier 均可为空：
// 没有 uploader 时图片更新按处理失败对待，没有 scanner 时跳过扫描。
func NewService(store Store, uploader enrich.Uploader, scanner enrich.Scanner, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Service{
		store:    store,
		uploader: uploader,
		scanner:  scanner,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Create 为 ownerID 新建一份空简历。
func (s *Service) Create(ctx context.Context, ownerID uint, title string) (*database.Resume, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	if err := Validate(Document{titleKey: title, publicKey: false}); err != nil {
		return nil, err
	}

	resume := &database.Resume{UserID: ownerID, Title: title}
	if err := s.store.Create(ctx, resume); err != nil {
		return nil, err
	}
	return resume, nil
}

// Get 返回 ownerID 名下的简历。
func (s *Service) Get(ctx context.Context, ownerID uint, resumeID string) (*database.Resume, error) {
	return s.store.FindOwned(ctx, ownerID, resumeID)
}

// GetPublic 返回公开简历；未公开与不存在返回同一个 ErrNotFound。
func (s *Service) GetPublic(ctx context.Context, resumeID string) (*database.Resume, error) {
	return s.store.FindPublic(ctx, resumeID)
}

// List 返回 ownerID 的全部简历。
func (s *Service) List(ctx context.Context, ownerID uint) ([]database.Resume, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Delete 删除 ownerID 名下的简历。
func (s *Service) Delete(ctx context.Context, ownerID uint, resumeID string) error {
	return s.store.DeleteOwned(ctx, ownerID, resumeID)
}

// Update 依次执行：解析请求体 → 可选的头像处理 → 合并校验 → 按归属条件写入。
// 头像处理失败只记录日志，文档其余部分照常保存。
// 调用方断开连接不会中断已开始的处理，头像处理受 cfg.Timeout 约束。
func (s *Service) Update(ctx context.Context, in UpdateInput) (*database.Resume, error) {
	ctx = context.WithoutCancel(ctx)

	doc, err := Normalize(in.Payload)
	if err != nil {
		return nil, err
	}
	// 占位值或上传失败都不代表要清除已有头像。
	keepStoredImage := dropImagePlaceholder(doc)

	log := s.logger.With(
		slog.Uint64("user_id", uint64(in.OwnerID)),
		slog.String("resume_id", in.ResumeID),
		slog.String("correlation_id", in.CorrelationID),
	)

	imageUpdated := false
	if in.Image != nil {
		// 不属于调用方的简历不值得托管图片；最终归属仍以写入条件为准。
		if _, err := s.store.FindOwned(ctx, in.OwnerID, in.ResumeID); err != nil {
			return nil, err
		}

		url, err := s.enrichImage(ctx, in.Image, in.RemoveBackground)
		if err != nil {
			log.Warn("image enrichment failed, saving resume without new image", slog.Any("error", err))
			keepStoredImage = true
		} else {
			setPersonalImage(doc, url)
			imageUpdated = true
		}
	}

	updated, err := s.store.UpdateOwned(ctx, in.OwnerID, in.ResumeID, func(r *database.Resume) error {
		return mergeInto(r, doc, keepStoredImage)
	})
	if err != nil {
		return nil, err
	}

	log.Info("resume saved", slog.Int("revision", updated.Revision), slog.Bool("image_updated", imageUpdated))

	if s.notifier != nil {
		msg := notify.Message{
			Type:          notify.EventResumeSaved,
			ResumeID:      updated.ID,
			Revision:      updated.Revision,
			ImageUpdated:  imageUpdated,
			CorrelationID: in.CorrelationID,
		}
		if err := s.notifier.Publish(ctx, in.OwnerID, msg); err != nil {
			log.Warn("publish resume saved notification failed", slog.Any("error", err))
		}
	}

	return updated, nil
}

func (s *Service) enrichImage(ctx context.Context, img *ImageInput, removeBackground bool) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: no image uploader configured", errcode.ErrEnrichmentFailed)
	}

	start := s.now()
	url, err := s.uploadImage(ctx, img, removeBackground)
	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.ObserveEnrichment(result, s.now().Sub(start).Seconds())

	if err != nil {
		return "", fmt.Errorf("%w: %w", errcode.ErrEnrichmentFailed, err)
	}
	return url, nil
}

func (s *Service) uploadImage(ctx context.Context, img *ImageInput, removeBackground bool) (string, error) {
	if img.Reader == nil {
		return "", errors.New("image body is empty")
	}

	staged, size, err := stageImage(s.cfg.StagingDir, img.Reader)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = staged.Close()
		if err := os.Remove(staged.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove staged image failed", slog.String("path", staged.Name()), slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.scanner != nil {
		if err := s.scanner.Scan(ctx, staged); err != nil {
			return "", fmt.Errorf("scan image: %w", err)
		}
		if _, err := staged.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind staged image: %w", err)
		}
	}

	result, err := s.uploader.Upload(ctx, enrich.UploadRequest{
		File:           staged,
		Size:           size,
		FileName:       imageFileName(s.now(), img.ContentType),
		Folder:         s.cfg.Folder,
		ContentType:    img.ContentType,
		Transformation: enrich.BuildDirective(s.cfg.BaseDirective, removeBackground),
	})
	if err != nil {
		return "", err
	}
	if result == nil || result.URL == "" {
		return "", errors.New("uploader returned no url")
	}
	return result.URL, nil
}

// stageImage 把上传内容落盘到临时文件，返回已回到起始位置的文件句柄与字节数。
// 调用方负责关闭并删除该文件。
func stageImage(dir string, r io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp(dir, "resume-image-*")
	if err != nil {
		return nil, 0, fmt.Errorf("create staging file: %w", err)
	}

	size, err := io.Copy(f, r)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, 0, fmt.Errorf("stage image: %w", err)
	}
	if size == 0 {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, 0, errors.New("image body is empty")
	}
	return f, size, nil
}

// imageFileName 生成 resume-<毫秒时间戳>.<子类型> 形式的文件名。
func imageFileName(now time.Time, contentType string) string {
	ext := "bin"
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if _, subtype, ok := strings.Cut(mediaType, "/"); ok && subtype != "" && !strings.ContainsAny(subtype, `/\.`) {
			ext = subtype
		}
	}
	return fmt.Sprintf("resume-%d.%s", now.UnixMilli(), ext)
}
