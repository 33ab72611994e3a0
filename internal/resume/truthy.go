package resume

// ParseTruthy 解析来自无类型传输（multipart 表单等）的布尔开关。
// 仅 "yes"、"true" 与布尔 true 视为真，其余（含 "no"、false、缺省）一律为假。
func ParseTruthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		return value == "yes" || value == "true"
	default:
		return false
	}
}
