// Package enrich 封装外部图片处理服务：上传原图并按变换指令（裁剪、人脸居中、去背景）托管。
package enrich

import (
	"context"
	"io"
	"strings"
)

// BackgroundRemovalModifier 追加在基础变换指令之后，请求服务端去除背景。
const BackgroundRemovalModifier = "e-bgremove"

// UploadRequest 描述一次图片托管请求。
type UploadRequest struct {
	File           io.Reader
	Size           int64
	FileName       string
	Folder         string
	ContentType    string
	Transformation string
}

// UploadResult 是托管成功后的结果，URL 一定是完整的绝对地址。
type UploadResult struct {
	URL    string
	FileID string
}

// Uploader 是图片处理服务的抽象，便于在测试中替换。
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// Scanner 在上传前检查文件内容。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// BuildDirective 在固定基础指令后按需追加去背景修饰符。
func BuildDirective(base string, removeBackground bool) string {
	directive := strings.Trim(strings.TrimSpace(base), ",")
	if !removeBackground {
		return directive
	}
	if directive == "" {
		return BackgroundRemovalModifier
	}
	return directive + "," + BackgroundRemovalModifier
}
