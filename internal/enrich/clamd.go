package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrMaliciousFile 表示扫描器判定文件不安全。
var ErrMaliciousFile = errors.New("malicious file detected")

// ClamdScanner 通过 clamd 的 INSTREAM 接口扫描上传内容。
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 构造扫描器；addr 形如 tcp://clamav:3310。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

// Scan 实现 Scanner。
func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	client := clamd.NewClamd(s.addr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("scan stream: %w", ctx.Err())
		case result, ok := <-scanChan:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: %s", ErrMaliciousFile, result.Description)
			default:
				return fmt.Errorf("scan stream status %s: %s", result.Status, result.Description)
			}
		}
	}
}
