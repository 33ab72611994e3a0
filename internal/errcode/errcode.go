package errcode

import (
	"errors"
	"net/http"
)

// 404 文案使用的资源名。
const (
	ResourceResume = "Resume"
	ResourceUser   = "User"
)

// 错误分类约定：
// - 业务层只返回下列哨兵错误（可用 %w 包装），由 HTTP 层统一映射状态码；
// - ErrEnrichmentFailed 永远不会越过简历更新流程，仅用于日志与指标。
var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrNotFound           = errors.New("not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrEnrichmentFailed   = errors.New("enrichment failed")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type notFoundError struct {
	resource string
}

func (e *notFoundError) Error() string { return e.resource + " not found" }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound 返回带资源名的 ErrNotFound，errors.Is(err, ErrNotFound) 仍然成立。
func NotFound(resource string) error {
	return &notFoundError{resource: resource}
}

// HTTPStatus 返回错误对应的稳定 HTTP 状态码，未知错误一律视为 500。
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrDuplicateUser),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message 返回面向客户端的固定文案，避免把内部错误细节直接暴露出去。
func Message(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "Invalid resume data"
	case errors.Is(err, ErrValidationFailed):
		return "Resume data failed validation"
	case errors.Is(err, ErrDuplicateUser):
		return "User already exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrUnauthenticated):
		return "Unauthorized"
	case errors.Is(err, ErrNotFound):
		var nf *notFoundError
		if errors.As(err, &nf) {
			return nf.resource + " not found"
		}
		return "Not found"
	default:
		return "Internal server error"
	}
}
