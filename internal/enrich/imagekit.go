package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ImageKitUploader 调用 ImageKit 上传接口，由服务端执行 pre 变换后返回托管地址。
type ImageKitUploader struct {
	uploadURL  string
	privateKey string
	httpClient *http.Client
}

// NewImageKitUploader 构造 ImageKit 客户端。httpClient 为空时使用带超时的默认客户端。
func NewImageKitUploader(uploadURL, privateKey string, httpClient *http.Client) (*ImageKitUploader, error) {
	uploadURL = strings.TrimSpace(uploadURL)
	if uploadURL == "" {
		return nil, errors.New("imagekit upload url is required")
	}
	if strings.TrimSpace(privateKey) == "" {
		return nil, errors.New("imagekit private key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ImageKitUploader{
		uploadURL:  uploadURL,
		privateKey: privateKey,
		httpClient: httpClient,
	}, nil
}

type imageKitTransformation struct {
	Pre string `json:"pre"`
}

type imageKitResponse struct {
	FileID  string `json:"fileId"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Upload 实现 Uploader。
func (u *ImageKitUploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	body, contentType, err := buildImageKitForm(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("build imagekit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.SetBasicAuth(u.privateKey, "")

	resp, err := u.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("imagekit upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("read imagekit response: %w", err)
	}

	var decoded imageKitResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(decoded.Message)
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("imagekit upload status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode imagekit response: %w", decodeErr)
	}
	if !isAbsoluteURL(decoded.URL) {
		return nil, fmt.Errorf("imagekit returned invalid url %q", decoded.URL)
	}

	return &UploadResult{URL: decoded.URL, FileID: decoded.FileID}, nil
}

func buildImageKitForm(req UploadRequest) (*bytes.Buffer, string, error) {
	transformation, err := json.Marshal(imageKitTransformation{Pre: req.Transformation})
	if err != nil {
		return nil, "", fmt.Errorf("encode transformation: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"fileName":          req.FileName,
		"folder":            req.Folder,
		"useUniqueFileName": "true",
	}
	if req.Transformation != "" {
		fields["transformation"] = string(transformation)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	part, err := writer.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, "", fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
