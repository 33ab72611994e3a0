package resume

import (
	"bytes"
	"encoding/json"
	"fmt"

	"resumeBuilder/internal/database"
)

// View 把存储行展开为对外输出的扁平文档：内容分区与 _id、userId、title、public 同级。
// includeBookkeeping 为 false 时不输出 revision 与时间戳。
func View(r *database.Resume, includeBookkeeping bool) (Document, error) {
	view := Document{}
	if len(bytes.TrimSpace(r.Content)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(r.Content))
		dec.UseNumber()
		if err := dec.Decode(&view); err != nil {
			return nil, fmt.Errorf("decode stored content of %q: %w", r.ID, err)
		}
		if view == nil {
			view = Document{}
		}
	}
	for key := range reservedKeys {
		delete(view, key)
	}

	view["_id"] = r.ID
	view["userId"] = r.UserID
	view[titleKey] = r.Title
	view[publicKey] = r.Public
	if includeBookkeeping {
		view["revision"] = r.Revision
		view["createdAt"] = r.CreatedAt
		view["updatedAt"] = r.UpdatedAt
	}
	return view, nil
}
