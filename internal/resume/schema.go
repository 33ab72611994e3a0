package resume

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"resumeBuilder/internal/errcode"
)

//go:embed resume.schema.json
var resumeSchemaJSON []byte

var resumeSchema = mustCompileSchema(resumeSchemaJSON)

// ValidationError 携带 schema 校验的具体失败项。
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Details, "; "))
}

func (e *ValidationError) Unwrap() error {
	return errcode.ErrValidationFailed
}

func mustCompileSchema(raw []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile resume schema: %v", err))
	}
	return schema
}

// Validate 按内置 schema 校验完整的简历文档。
func Validate(doc Document) error {
	result, err := resumeSchema.Validate(gojsonschema.NewGoLoader(map[string]any(doc)))
	if err != nil {
		return fmt.Errorf("%w: %v", errcode.ErrValidationFailed, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		details = append(details, e.String())
	}
	return &ValidationError{Details: details}
}
