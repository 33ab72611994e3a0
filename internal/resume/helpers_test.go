package resume

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/enrich"
	"resumeBuilder/internal/notify"
)

func newTestRepo(t *testing.T) (*database.ResumeRepository, *gorm.DB) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database.NewResumeRepository(db), db
}

func seed(t *testing.T, repo *database.ResumeRepository, ownerID uint, content string) *database.Resume {
	t.Helper()
	r := &database.Resume{UserID: ownerID, Title: "CV", Content: datatypes.JSON(content)}
	if err := repo.Create(context.Background(), r); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUploader struct {
	mu       sync.Mutex
	requests []enrich.UploadRequest
	bodies   []string
	url      string
	err      error
	block    bool
}

func (f *fakeUploader) Upload(ctx context.Context, req enrich.UploadRequest) (*enrich.UploadResult, error) {
	body, _ := io.ReadAll(req.File)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &enrich.UploadResult{URL: f.url, FileID: "file-1"}, nil
}

func (f *fakeUploader) calls() []enrich.UploadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enrich.UploadRequest(nil), f.requests...)
}

type rejectingScanner struct{}

func (rejectingScanner) Scan(ctx context.Context, r io.Reader) error {
	return enrich.ErrMaliciousFile
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Publish(ctx context.Context, userID uint, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

var errUpstream = errors.New("upstream unavailable")
