package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencode-ai/pmsync/internal/models"
)

// WriteResult lists the folders written and the records left out.
type WriteResult struct {
	Written []string  `json:"written"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// FolderFor returns the folder a record is written to below root.
func FolderFor(root string, template models.Template) string {
	if template.IsLayout() {
		return filepath.Join(root, LayoutsDir, template.Alias)
	}
	return filepath.Join(root, template.Alias)
}

// Write stores templates below root, one folder per alias. Empty bodies are
// not written and any stale body file from an earlier write is removed, so
// that Build returns the same records. Records without a usable alias are
// skipped.
func Write(root string, templates []models.Template, opts ...Option) (*WriteResult, error) {
	o := applyOptions(opts)

	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", root, err)
	}

	result := &WriteResult{}
	for _, template := range templates {
		if reason := unsafeAlias(template.Alias); reason != "" {
			o.logger.Warn().Str("name", template.Name).Msg(reason)
			result.Skipped = append(result.Skipped, Skipped{Path: template.Name, Reason: reason})
			continue
		}

		dir := FolderFor(root, template)
		if err := writeFolder(dir, template); err != nil {
			return result, err
		}
		result.Written = append(result.Written, dir)
	}
	return result, nil
}

func writeFolder(dir string, template models.Template) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	if err := writeBody(filepath.Join(dir, HTMLFileName), template.HTMLBody); err != nil {
		return err
	}
	if err := writeBody(filepath.Join(dir, TextFileName), template.TextBody); err != nil {
		return err
	}

	meta, err := encodeMeta(template)
	if err != nil {
		return fmt.Errorf("%s: %w", template.Alias, err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFileName), meta, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Join(dir, MetaFileName), err)
	}
	return nil
}

func writeBody(path, content string) error {
	if content == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", path, err)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func unsafeAlias(alias string) string {
	switch {
	case strings.TrimSpace(alias) == "":
		return "template has no alias and will not be saved"
	case alias == "." || alias == ".." || strings.ContainsAny(alias, `/\`):
		return fmt.Sprintf("alias %q cannot be used as a folder name", alias)
	default:
		return ""
	}
}
