package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/postnome/postnome/internal/logging"
	"github.com/postnome/postnome/internal/tree"
)

// RemarksSuffix is appended to the document path for the metadata sidecar.
const RemarksSuffix = ".remarks.json"

// FileImporter writes documents as <Dir>/<name><type>. JSON metadata is
// reduced to its remarks object and written next to the document.
type FileImporter struct {
	Dir string
}

func (f *FileImporter) Import(ctx context.Context, item Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := f.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create import dir: %w", err)
	}

	name := filepath.Base(item.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "import"
	}
	path := filepath.Join(dir, name+item.Type)
	if err := os.WriteFile(path, []byte(item.Content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	if item.Metadata != "" {
		meta, err := tree.Parse([]byte(item.Metadata))
		if err != nil {
			logging.Warn("metadata is not JSON, skipping remarks", "document", path, "error", err)
			return path, nil
		}
		data, err := json.MarshalIndent(Remarks(meta), "", "  ")
		if err != nil {
			return path, fmt.Errorf("encode remarks: %w", err)
		}
		if err := os.WriteFile(path+RemarksSuffix, data, 0o644); err != nil {
			return path, fmt.Errorf("write remarks: %w", err)
		}
	}
	logging.Info("imported document", "path", path, "type", item.Type)
	return path, nil
}

// Remarks descends into the nested object most likely to hold the
// document's descriptive fields: the first child map, replaced by any later
// child map larger than the current pick.
func Remarks(v tree.Value) tree.Value {
	if v.Kind() != tree.Map {
		return v
	}
	result := v
	picked := -1
	for _, e := range v.Entries() {
		if e.Value.Kind() != tree.Map {
			continue
		}
		// sizes compare between siblings, not against the descended result
		if picked < 0 || e.Value.Len() > picked {
			picked = e.Value.Len()
			result = Remarks(e.Value)
		}
	}
	return result
}
