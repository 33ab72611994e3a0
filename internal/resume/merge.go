package resume

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"resumeBuilder/internal/database"
)

const (
	titleKey        = "title"
	publicKey       = "public"
	personalInfoKey = "personal_info"
	imageKey        = "image"
)

// 这些键由存储层维护或决定归属，不能由请求体改写。
var reservedKeys = map[string]struct{}{
	"_id":       {},
	"id":        {},
	"userId":    {},
	"user_id":   {},
	"createdAt": {},
	"updatedAt": {},
	"__v":       {},
	"revision":  {},
}

// mergeInto 将 doc 合并进已存储的简历：
// doc 中出现的顶层分区整体替换原分区，未出现的分区保持不变。
// keepStoredImage 为 true 且 doc 没有给出字符串形式的 personal_info.image 时，沿用已存储的图片地址。
// 合并结果先经 schema 校验，通过后才写回 resume。
func mergeInto(resume *database.Resume, doc Document, keepStoredImage bool) error {
	merged, err := documentOf(resume)
	if err != nil {
		return err
	}
	storedImage := personalImage(merged)

	for key, value := range doc {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		merged[key] = value
	}
	if keepStoredImage && storedImage != "" {
		if info, ok := merged[personalInfoKey].(map[string]any); ok {
			if _, isString := info[imageKey].(string); !isString {
				info[imageKey] = storedImage
			}
		}
	}
	normalizeSkills(merged)

	if err := Validate(merged); err != nil {
		return err
	}

	resume.Title, _ = merged[titleKey].(string)
	resume.Public, _ = merged[publicKey].(bool)
	delete(merged, titleKey)
	delete(merged, publicKey)

	content, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode resume content: %w", err)
	}
	resume.Content = datatypes.JSON(content)
	return nil
}

// documentOf 将存储行还原为完整的 Document（含 title 与 public）。
func documentOf(resume *database.Resume) (Document, error) {
	doc := Document{}
	if len(bytes.TrimSpace(resume.Content)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(resume.Content))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode stored content of %q: %w", resume.ID, err)
		}
		if doc == nil {
			doc = Document{}
		}
	}
	doc[titleKey] = resume.Title
	doc[publicKey] = resume.Public
	return doc, nil
}

// dropImagePlaceholder 移除 personal_info.image 中的非字符串占位值
// （浏览器把 File 对象序列化后得到的 {}），真正的图片通过 multipart 单独上传。
// 返回是否移除了占位值。
func dropImagePlaceholder(doc Document) bool {
	info, ok := doc[personalInfoKey].(map[string]any)
	if !ok {
		return false
	}
	if value, exists := info[imageKey]; exists {
		if _, isString := value.(string); !isString {
			delete(info, imageKey)
			return true
		}
	}
	return false
}

func personalImage(doc Document) string {
	info, ok := doc[personalInfoKey].(map[string]any)
	if !ok {
		return ""
	}
	image, _ := info[imageKey].(string)
	return image
}

// setPersonalImage 写入托管后的图片 URL，必要时创建 personal_info。
func setPersonalImage(doc Document, url string) {
	info, ok := doc[personalInfoKey].(map[string]any)
	if !ok {
		info = map[string]any{}
		doc[personalInfoKey] = info
	}
	info[imageKey] = url
}
