package resume

import (
	"errors"
	"strings"
	"testing"

	"resumeBuilder/internal/errcode"
)

func TestValidate(t *testing.T) {
	valid := func() Document {
		return Document{
			"title":  "CV",
			"public": false,
			"skills": []any{"Go"},
			"personal_info": map[string]any{
				"image": "https://ik.imagekit.io/demo/user-resumes/resume-1.png",
			},
			"custom_section": map[string]any{"anything": 1.0},
		}
	}

	if err := Validate(valid()); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}

	cases := map[string]func(Document){
		"missing title":   func(d Document) { delete(d, "title") },
		"empty title":     func(d Document) { d["title"] = "" },
		"long title":      func(d Document) { d["title"] = strings.Repeat("x", 256) },
		"string public":   func(d Document) { d["public"] = "yes" },
		"legacy skills":   func(d Document) { d["skills"] = "Go, SQL" },
		"numeric skill":   func(d Document) { d["skills"] = []any{1.0} },
		"relative image":  func(d Document) { d["personal_info"] = map[string]any{"image": "/uploads/me.png"} },
		"file image":      func(d Document) { d["personal_info"] = map[string]any{"image": "file:///tmp/upload_abc.png"} },
		"opaque image":    func(d Document) { d["personal_info"] = map[string]any{"image": "uploads:abc.png"} },
		"mailto image":    func(d Document) { d["personal_info"] = map[string]any{"image": "mailto:x@y"} },
		"hostless image":  func(d Document) { d["personal_info"] = map[string]any{"image": "https:///a.png"} },
		"non-array xp":    func(d Document) { d["experience"] = "ten years" },
		"object as image": func(d Document) { d["personal_info"] = map[string]any{"image": map[string]any{}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			doc := valid()
			mutate(doc)
			err := Validate(doc)
			if !errors.Is(err, errcode.ErrValidationFailed) {
				t.Fatalf("expected validation failure, got %v", err)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) || len(vErr.Details) == 0 {
				t.Fatalf("expected validation details, got %v", err)
			}
		})
	}

	for _, image := range []string{"http://localhost:9000/resume-images/a.png", "https://ik.example/a.png?tr=w-300"} {
		doc := valid()
		doc["personal_info"] = map[string]any{"image": image}
		if err := Validate(doc); err != nil {
			t.Fatalf("hosted image %q should be valid, got %v", image, err)
		}
	}

	empty := valid()
	empty["personal_info"] = map[string]any{"image": ""}
	if err := Validate(empty); err != nil {
		t.Fatalf("empty image should be allowed, got %v", err)
	}
}
