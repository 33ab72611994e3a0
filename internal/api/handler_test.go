package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/enrich"
	"resumeBuilder/internal/resume"
)

type recordingUploader struct {
	mu       sync.Mutex
	requests []enrich.UploadRequest
}

func (u *recordingUploader) Upload(ctx context.Context, req enrich.UploadRequest) (*enrich.UploadResult, error) {
	_, _ = io.Copy(io.Discard, req.File)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests = append(u.requests, req)
	return &enrich.UploadResult{URL: "https://ik.imagekit.io/demo/user-resumes/" + req.FileName}, nil
}

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	auth     *auth.AuthService
	uploader *recordingUploader
}

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	publicDER, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	authService, err := auth.NewAuthService(privatePEM, publicPEM, time.Hour)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return authService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	authService := newTestAuthService(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uploader := &recordingUploader{}
	service := resume.NewService(database.NewResumeRepository(db), uploader, nil, nil, logger, resume.ServiceConfig{
		Folder:        "/user-resumes",
		BaseDirective: "w-300,h-300,fo-face,z-0.75",
		Timeout:       time.Second,
		StagingDir:    t.TempDir(),
	})

	router := NewRouter(&config.Config{}, logger)
	RegisterRoutes(router, Dependencies{
		Resumes:        service,
		Users:          database.NewUserRepository(db),
		Auth:           authService,
		Logger:         logger,
		MaxUploadBytes: 1 << 20,
	})

	return &testServer{router: router, db: db, auth: authService, uploader: uploader}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users/register", "", gin.H{"name": "Ada", "email": email, "password": "s3cret-pass"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func (s *testServer) createResume(t *testing.T, token, title string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/resumes/create", token, gin.H{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Resume map[string]any `json:"resume"`
	}
	decode(t, rec, &resp)
	return resp.Resume["_id"].(string)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada@example.com")

	rec := s.do(t, http.MethodPost, "/api/users/register", "", gin.H{"name": "Ada", "email": "ADA@example.com", "password": "another-pass"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected duplicate registration to fail, got %d", rec.Code)
	}
	var count int64
	s.db.Model(&database.User{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single user, got %d", count)
	}

	rec = s.do(t, http.MethodPost, "/api/users/register", "", gin.H{"email": "x@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected missing fields to fail, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@example.com", "password": "wrong"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid credentials, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "nobody@example.com", "password": "wrong"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid credentials for unknown email, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@example.com", "password": "s3cret-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	decode(t, rec, &resp)
	if _, err := s.auth.ResolveIdentity(resp.Token); err != nil {
		t.Fatalf("login token invalid: %v", err)
	}
	if _, leaked := resp.User["passwordHash"]; leaked {
		t.Fatal("password hash leaked")
	}

	rec = s.do(t, http.MethodGet, "/api/users/data", resp.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("user data: %d", rec.Code)
	}
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/resumes/create"},
		{http.MethodPut, "/api/resumes/update"},
		{http.MethodGet, "/api/resumes/get/abc"},
		{http.MethodDelete, "/api/resumes/delete/abc"},
		{http.MethodGet, "/api/users/data"},
	} {
		if rec := s.do(t, tc.method, tc.path, "not-a-token", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestResumeLifecycleJSON(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada@example.com")
	id := s.createResume(t, token, "Backend")

	// resumeData 以字符串形式提交。
	rec := s.do(t, http.MethodPut, "/api/resumes/update", token, gin.H{
		"resumeId":   id,
		"resumeData": `{"skills":"Go, SQL","personal_info":{"full_name":"Ada"}}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update text: %d %s", rec.Code, rec.Body.String())
	}

	// resumeData 以对象形式提交，未出现的分区保持不变。
	rec = s.do(t, http.MethodPut, "/api/resumes/update", token, gin.H{
		"resumeId":   id,
		"resumeData": gin.H{"public": true, "professional_summary": "Go developer"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update object: %d %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Message string         `json:"message"`
		Resume  map[string]any `json:"resume"`
	}
	decode(t, rec, &updated)
	if updated.Message != "Saved successfully" {
		t.Fatalf("unexpected message %q", updated.Message)
	}
	skills, _ := updated.Resume["skills"].([]any)
	if len(skills) != 2 || skills[0] != "Go" || skills[1] != "SQL" {
		t.Fatalf("skills not preserved: %#v", updated.Resume["skills"])
	}

	rec = s.do(t, http.MethodGet, "/api/resumes/get/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	var got struct {
		Resume map[string]any `json:"resume"`
	}
	decode(t, rec, &got)
	for _, key := range []string{"revision", "createdAt", "updatedAt"} {
		if _, ok := got.Resume[key]; ok {
			t.Fatalf("bookkeeping field %q leaked", key)
		}
	}

	rec = s.do(t, http.MethodGet, "/api/resumes/public/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public read: %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/users/resumes", token, nil)
	var list struct {
		Resumes []map[string]any `json:"resume"`
	}
	decode(t, rec, &list)
	if len(list.Resumes) != 1 {
		t.Fatalf("expected one resume in list, got %d", len(list.Resumes))
	}

	if rec := s.do(t, http.MethodDelete, "/api/resumes/delete/"+id, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/resumes/get/"+id, token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada@example.com")
	id := s.createResume(t, token, "CV")

	rec := s.do(t, http.MethodPut, "/api/resumes/update", token, gin.H{"resumeId": id, "resumeData": "{not json"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected malformed payload 400, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/resumes/update", token, gin.H{"resumeId": id, "resumeData": gin.H{"skills": []int{1}}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected validation 400, got %d", rec.Code)
	}
	var body struct {
		Details []string `json:"details"`
	}
	decode(t, rec, &body)
	if len(body.Details) == 0 {
		t.Fatal("expected validation details")
	}

	rec = s.do(t, http.MethodPut, "/api/resumes/update", token, gin.H{"resumeData": gin.H{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected missing resumeId 400, got %d", rec.Code)
	}
}

func TestForeignOwnerSeesNotFound(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com")
	intruder := s.register(t, "intruder@example.com")
	id := s.createResume(t, owner, "CV")

	missing := s.do(t, http.MethodDelete, "/api/resumes/delete/"+uuid.NewString(), intruder, nil)
	foreign := s.do(t, http.MethodDelete, "/api/resumes/delete/"+id, intruder, nil)
	if foreign.Code != http.StatusNotFound || foreign.Body.String() != missing.Body.String() {
		t.Fatalf("foreign delete must look like a missing resume: %d %s", foreign.Code, foreign.Body.String())
	}

	rec := s.do(t, http.MethodPut, "/api/resumes/update", intruder, gin.H{"resumeId": id, "resumeData": gin.H{"title": "pwned"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on foreign update, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/resumes/get/"+id, intruder, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on foreign get, got %d", rec.Code)
	}
}

func TestPublicViewHidesPrivateResume(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada@example.com")
	id := s.createResume(t, token, "CV")

	private := s.do(t, http.MethodGet, "/api/resumes/public/"+id, "", nil)
	missing := s.do(t, http.MethodGet, "/api/resumes/public/"+uuid.NewString(), "", nil)
	if private.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for both, got %d and %d", private.Code, missing.Code)
	}
	if private.Body.String() != missing.Body.String() {
		t.Fatalf("responses differ: %s vs %s", private.Body.String(), missing.Body.String())
	}
}

func TestUpdateMultipartWithImage(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada@example.com")
	id := s.createResume(t, token, "CV")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("resumeId", id)
	_ = writer.WriteField("resumeData", `{"personal_info":{"full_name":"Ada","image":{}}}`)
	_ = writer.WriteField("removeBackground", "yes")
	part, err := writer.CreateFormFile("image", "me.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nimage bytes"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPut, "/api/resumes/update", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("multipart update: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Resume map[string]any `json:"resume"`
	}
	decode(t, rec, &resp)
	info := resp.Resume["personal_info"].(map[string]any)
	image, _ := info["image"].(string)
	if len(s.uploader.requests) != 1 {
		t.Fatalf("expected one upload, got %d", len(s.uploader.requests))
	}
	if image != "https://ik.imagekit.io/demo/user-resumes/"+s.uploader.requests[0].FileName {
		t.Fatalf("unexpected image url %q", image)
	}
	if got := s.uploader.requests[0].ContentType; got != "image/png" {
		t.Fatalf("expected sniffed png content type, got %q", got)
	}
	if got := s.uploader.requests[0].Transformation; got != "w-300,h-300,fo-face,z-0.75,e-bgremove" {
		t.Fatalf("unexpected directive %q", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
