package resume

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"resumeBuilder/internal/errcode"
)

// Document 是简历内容在内存中的规范表示，与传输编码无关。
// 顶层键即简历分区（title、public、personal_info、skills ...）。
type Document map[string]any

type payloadKind int

const (
	payloadText payloadKind = iota + 1
	payloadObject
)

// Payload 是显式标记过来源的原始简历数据：要么是序列化文本，要么是已结构化的对象。
type Payload struct {
	kind   payloadKind
	text   string
	object map[string]any
}

// PayloadFromText 包装一段待解析的 JSON 文本。
func PayloadFromText(text string) Payload {
	return Payload{kind: payloadText, text: text}
}

// PayloadFromObject 包装一个已结构化的对象；Normalize 会对其做深拷贝。
func PayloadFromObject(object map[string]any) Payload {
	return Payload{kind: payloadObject, object: object}
}

// PayloadFromJSON 根据原始 JSON 值的形态选择标记：JSON 字符串视为文本，对象视为结构化数据。
func PayloadFromJSON(raw json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Payload{}, fmt.Errorf("%w: resume data is empty", errcode.ErrMalformedPayload)
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", errcode.ErrMalformedPayload, err)
		}
		return PayloadFromText(text), nil
	case '{':
		doc, err := decodeDocument(trimmed)
		if err != nil {
			return Payload{}, err
		}
		return PayloadFromObject(doc), nil
	default:
		return Payload{}, fmt.Errorf("%w: resume data must be an object or a string", errcode.ErrMalformedPayload)
	}
}

// Normalize 将 Payload 解码为独立的 Document。
// 结构化输入会先序列化再解码，因此结果与输入之间没有任何共享的可变状态，
// 且文本与对象两种编码得到的 Document 深度相等。
func Normalize(p Payload) (Document, error) {
	var data []byte
	switch p.kind {
	case payloadText:
		data = []byte(p.text)
	case payloadObject:
		if p.object == nil {
			return nil, fmt.Errorf("%w: resume data is null", errcode.ErrMalformedPayload)
		}
		encoded, err := json.Marshal(p.object)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errcode.ErrMalformedPayload, err)
		}
		data = encoded
	default:
		return nil, fmt.Errorf("%w: resume data is missing", errcode.ErrMalformedPayload)
	}

	return decodeDocument(data)
}

// decodeDocument 以 json.Number 保留数字原文，超出 float64 精度的整数不会被改写。
func decodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", errcode.ErrMalformedPayload, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after resume object", errcode.ErrMalformedPayload)
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: resume data must be a JSON object", errcode.ErrMalformedPayload)
	}
	return Document(object), nil
}
