package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/resume"
)

// multipart 表单中除图片以外字段的额外空间。
const formOverheadBytes = 1 << 20

// ResumeHandler 负责处理与简历相关的 API 请求。
type ResumeHandler struct {
	service        *resume.Service
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewResumeHandler 构造 ResumeHandler。
func NewResumeHandler(service *resume.Service, logger *slog.Logger, maxUploadBytes int64) *ResumeHandler {
	return &ResumeHandler{
		service:        service,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

type createResumeRequest struct {
	Title string `json:"title"`
}

// CreateResume 为当前用户新建一份简历。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "Invalid request body")
		return
	}

	created, err := h.service.Create(c.Request.Context(), userID, req.Title)
	if err != nil {
		respondError(c, h.loggerFromContext(c), err)
		return
	}

	h.writeResume(c, http.StatusCreated, "Resume created successfully", created, true)
}

type updateResumeRequest struct {
	ResumeID         string          `json:"resumeId"`
	ResumeData       json.RawMessage `json:"resumeData"`
	RemoveBackground any             `json:"removeBackground"`
}

// UpdateResume 接受 multipart 表单（可附带 image）或 JSON 请求体。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var (
		input resume.UpdateInput
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		var cleanup func()
		input, cleanup, err = h.bindMultipartUpdate(c)
		if cleanup != nil {
			defer cleanup()
		}
	} else {
		input, err = bindJSONUpdate(c)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, "Upload is too large")
			return
		}
		respondError(c, logger, err)
		return
	}
	if strings.TrimSpace(input.ResumeID) == "" {
		BadRequest(c, "resumeId is required")
		return
	}

	input.OwnerID = userID
	input.CorrelationID = middleware.GetCorrelationID(c)

	updated, err := h.service.Update(c.Request.Context(), input)
	if err != nil {
		respondError(c, logger.With(slog.String("resume_id", input.ResumeID)), err)
		return
	}

	h.writeResume(c, http.StatusOK, "Saved successfully", updated, true)
}

func (h *ResumeHandler) bindMultipartUpdate(c *gin.Context) (resume.UpdateInput, func(), error) {
	var input resume.UpdateInput

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverheadBytes)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return input, nil, err
		}
		return input, nil, fmt.Errorf("%w: %v", errcode.ErrMalformedPayload, err)
	}
	cleanup := func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}

	input.ResumeID = c.PostForm("resumeId")
	input.Payload = resume.PayloadFromText(c.PostForm("resumeData"))
	input.RemoveBackground = resume.ParseTruthy(c.PostForm("removeBackground"))

	header, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return input, cleanup, nil
	case err != nil:
		return input, cleanup, fmt.Errorf("%w: %v", errcode.ErrMalformedPayload, err)
	}
	if header.Size > h.maxUploadBytes {
		return input, cleanup, &http.MaxBytesError{Limit: h.maxUploadBytes}
	}

	file, err := header.Open()
	if err != nil {
		return input, cleanup, fmt.Errorf("open uploaded image: %w", err)
	}
	contentType, err := imageContentType(header, file)
	if err != nil {
		_ = file.Close()
		return input, cleanup, fmt.Errorf("read uploaded image: %w", err)
	}
	input.Image = &resume.ImageInput{
		Reader:      file,
		ContentType: contentType,
	}
	return input, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

func bindJSONUpdate(c *gin.Context) (resume.UpdateInput, error) {
	var req updateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return resume.UpdateInput{}, fmt.Errorf("%w: %v", errcode.ErrMalformedPayload, err)
	}

	payload, err := resume.PayloadFromJSON(req.ResumeData)
	if err != nil {
		return resume.UpdateInput{}, err
	}
	return resume.UpdateInput{
		ResumeID:         req.ResumeID,
		Payload:          payload,
		RemoveBackground: resume.ParseTruthy(req.RemoveBackground),
	}, nil
}

// imageContentType 优先使用表单声明的类型，缺省或为通用二进制类型时按内容嗅探。
func imageContentType(header *multipart.FileHeader, file multipart.File) (string, error) {
	if ct := strings.TrimSpace(header.Header.Get("Content-Type")); ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(sniff[:n]), nil
}

// DeleteResume 删除当前用户名下的简历。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, c.Param("resumeId")); err != nil {
		respondError(c, h.loggerFromContext(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Resume deleted successfully"})
}

// GetResume 返回当前用户名下的简历，不含修订号与时间戳。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	found, err := h.service.Get(c.Request.Context(), userID, c.Param("resumeId"))
	if err != nil {
		respondError(c, h.loggerFromContext(c), err)
		return
	}
	h.writeResume(c, http.StatusOK, "", found, false)
}

// GetPublicResume 匿名读取公开简历。
func (h *ResumeHandler) GetPublicResume(c *gin.Context) {
	found, err := h.service.GetPublic(c.Request.Context(), c.Param("resumeId"))
	if err != nil {
		respondError(c, h.loggerFromContext(c), err)
		return
	}
	h.writeResume(c, http.StatusOK, "", found, false)
}

func (h *ResumeHandler) writeResume(c *gin.Context, status int, message string, r *database.Resume, includeBookkeeping bool) {
	view, err := resume.View(r, includeBookkeeping)
	if err != nil {
		respondError(c, h.loggerFromContext(c), err)
		return
	}

	body := gin.H{"resume": view}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func (h *ResumeHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
