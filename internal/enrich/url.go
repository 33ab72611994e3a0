package enrich

import (
	"net/url"
	"strings"
)

// isAbsoluteURL 只接受带主机名的 http(s) 地址。
func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
