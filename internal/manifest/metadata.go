package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"
)

// File names inside a template folder.
const (
	MetaFileName = "meta.json"
	HTMLFileName = "content.html"
	TextFileName = "content.txt"

	// LayoutsDir groups layout folders under the template root.
	LayoutsDir = "_layouts"
)

//go:embed meta.schema.json
var metaSchemaJSON []byte

var loadMetaSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(metaSchemaJSON))
})

// metaFile is the on-disk metadata shape as read.
type metaFile struct {
	Name           string  `json:"Name"`
	Alias          *string `json:"Alias"`
	TemplateType   string  `json:"TemplateType"`
	Subject        *string `json:"Subject"`
	LayoutTemplate *string `json:"LayoutTemplate"`
}

// standardMeta and layoutMeta are the shapes written by Write. A standard
// template always carries LayoutTemplate, null when unset.
type standardMeta struct {
	Name           string  `json:"Name"`
	Alias          string  `json:"Alias"`
	Subject        string  `json:"Subject,omitempty"`
	TemplateType   string  `json:"TemplateType"`
	LayoutTemplate *string `json:"LayoutTemplate"`
}

type layoutMeta struct {
	Name         string `json:"Name"`
	Alias        string `json:"Alias"`
	TemplateType string `json:"TemplateType"`
}

// parseMeta decodes JSONC metadata, validates it and returns the record
// without bodies. Subject and LayoutTemplate are ignored for layouts.
func parseMeta(data []byte) (models.Template, error) {
	stripped := jsonc.ToJSON(data)

	schema, err := loadMetaSchema()
	if err != nil {
		return models.Template{}, fmt.Errorf("compile metadata schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(stripped))
	if err != nil {
		return models.Template{}, fmt.Errorf("parse metadata: %w", err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return models.Template{}, fmt.Errorf("invalid metadata: %s", strings.Join(issues, "; "))
	}

	var meta metaFile
	if err := json.Unmarshal(stripped, &meta); err != nil {
		return models.Template{}, fmt.Errorf("decode metadata: %w", err)
	}

	templateType, err := models.ParseTemplateType(meta.TemplateType)
	if err != nil {
		return models.Template{}, err
	}

	// Values are kept as written so that a pulled folder matches the server.
	if templateType == models.TemplateTypeLayout {
		return models.NewLayout(meta.Name, deref(meta.Alias)), nil
	}
	return models.NewStandard(meta.Name, deref(meta.Alias), deref(meta.Subject), deref(meta.LayoutTemplate)), nil
}

// encodeMeta renders the metadata file for a record.
func encodeMeta(template models.Template) ([]byte, error) {
	var value any
	if template.IsLayout() {
		value = layoutMeta{
			Name:         template.Name,
			Alias:        template.Alias,
			TemplateType: string(models.TemplateTypeLayout),
		}
	} else {
		var layout *string
		if name := template.LayoutTemplate(); name != "" {
			layout = &name
		}
		value = standardMeta{
			Name:           template.Name,
			Alias:          template.Alias,
			Subject:        template.Subject(),
			TemplateType:   string(models.TemplateTypeStandard),
			LayoutTemplate: layout,
		}
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return append(data, '\n'), nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
