package resume

import "strings"

const skillsKey = "skills"

// SplitSkills 将旧版逗号分隔的技能文本拆分为有序列表，丢弃空项。
func SplitSkills(text string) []string {
	parts := strings.Split(text, ",")
	skills := make([]string, 0, len(parts))
	for _, part := range parts {
		if skill := strings.TrimSpace(part); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}

// normalizeSkills 把文档中的 skills 统一为字符串列表：文本按逗号拆分，列表项去空白并丢弃空项。
// 非字符串的列表项保持原样，交给 schema 校验拒绝。返回值表示是否发生了改写。
func normalizeSkills(doc Document) bool {
	raw, ok := doc[skillsKey]
	if !ok {
		return false
	}

	switch value := raw.(type) {
	case string:
		doc[skillsKey] = toAnySlice(SplitSkills(value))
		return true
	case []any:
		cleaned := make([]any, 0, len(value))
		changed := false
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				cleaned = append(cleaned, item)
				continue
			}
			trimmed := strings.TrimSpace(s)
			if trimmed != s {
				changed = true
			}
			if trimmed == "" {
				changed = true
				continue
			}
			cleaned = append(cleaned, trimmed)
		}
		if changed {
			doc[skillsKey] = cleaned
		}
		return changed
	default:
		return false
	}
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
