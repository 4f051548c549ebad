// Package manifest reads and writes the on-disk template tree.
//
// Each template or layout lives in its own folder holding a meta.json marker
// plus optional content.html and content.txt bodies. Layout folders are kept
// under _layouts by Write but may live anywhere when read.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/opencode-ai/pmsync/internal/logging"
	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/rs/zerolog"
)

// Build errors.
var (
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrNotADirectory     = errors.New("not a directory")
)

// Skipped records a folder that was left out of the manifest.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the manifest plus whatever was skipped while building it.
type Result struct {
	Root      string            `json:"root"`
	Templates []models.Template `json:"templates"`
	Skipped   []Skipped         `json:"skipped,omitempty"`
}

// Option configures Build and Write.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: logging.Component("manifest")}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Build walks root for metadata files and returns one record per folder,
// in lexical path order. Unreadable or invalid folders, folders without an
// alias and repeated aliases are skipped with a warning instead of failing
// the whole build.
func Build(root string, opts ...Option) (*Result, error) {
	o := applyOptions(opts)

	if err := checkDirectory(root); err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(root), "**/"+MetaFileName)
	if err != nil {
		return nil, fmt.Errorf("search %s for %s: %w", root, MetaFileName, err)
	}

	result := &Result{
		Root:      root,
		Templates: make([]models.Template, 0, len(matches)),
	}
	seen := make(map[string]string, len(matches))

	skip := func(dir, reason string) {
		o.logger.Warn().Str("path", dir).Msg(reason)
		result.Skipped = append(result.Skipped, Skipped{Path: dir, Reason: reason})
	}

	for _, match := range matches {
		dir := filepath.Join(root, filepath.FromSlash(path.Dir(match)))

		template, err := readFolder(dir)
		if err != nil {
			skip(dir, err.Error())
			continue
		}
		if template.Alias == "" {
			skip(dir, fmt.Sprintf("template %q has no alias and will not be pushed", template.Name))
			continue
		}
		if first, exists := seen[template.Alias]; exists {
			skip(dir, fmt.Sprintf("duplicate alias %q, already defined in %s", template.Alias, first))
			continue
		}
		seen[template.Alias] = dir

		o.logger.Debug().Str("alias", template.Alias).Str("type", string(template.Type())).Msg("manifest entry")
		result.Templates = append(result.Templates, template)
	}

	return result, nil
}

func checkDirectory(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
		}
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, root)
	}
	return nil
}

// readFolder merges the metadata with the bodies next to it.
func readFolder(dir string) (models.Template, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFileName))
	if err != nil {
		return models.Template{}, fmt.Errorf("read %s: %w", MetaFileName, err)
	}

	template, err := parseMeta(data)
	if err != nil {
		return models.Template{}, fmt.Errorf("%s: %w", MetaFileName, err)
	}

	html, err := readOptional(filepath.Join(dir, HTMLFileName))
	if err != nil {
		return models.Template{}, err
	}
	text, err := readOptional(filepath.Join(dir, TextFileName))
	if err != nil {
		return models.Template{}, err
	}

	return template.WithBodies(html, text), nil
}

// readOptional returns "" for a missing file.
func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}
