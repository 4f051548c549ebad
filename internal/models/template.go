// Package models defines the records shared by the sync engine, the CLI and the journal.
package models

import (
	"fmt"
	"strings"
)

// TemplateType distinguishes standard templates from layouts.
type TemplateType string

const (
	TemplateTypeStandard TemplateType = "Standard"
	TemplateTypeLayout   TemplateType = "Layout"
)

// ParseTemplateType accepts the wire values and their lowercase forms.
// An empty value is treated as Standard.
func ParseTemplateType(value string) (TemplateType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "standard":
		return TemplateTypeStandard, nil
	case "layout":
		return TemplateTypeLayout, nil
	default:
		return "", fmt.Errorf("unknown template type %q (expected Standard or Layout)", value)
	}
}

// Label returns the lowercase noun used in human output.
func (t TemplateType) Label() string {
	if t == TemplateTypeLayout {
		return "layout"
	}
	return "template"
}

// StandardFields holds the fields that only exist on standard templates.
type StandardFields struct {
	Subject        string `json:"subject,omitempty" yaml:"subject,omitempty"`
	LayoutTemplate string `json:"layout_template,omitempty" yaml:"layout_template,omitempty"`
}

// Template is a template or layout, local or remote.
//
// A nil Standard marks the record as a layout. Empty strings stand for
// missing content; there is no separate null state.
type Template struct {
	Name     string          `json:"name" yaml:"name"`
	Alias    string          `json:"alias" yaml:"alias"`
	HTMLBody string          `json:"html_body,omitempty" yaml:"html_body,omitempty"`
	TextBody string          `json:"text_body,omitempty" yaml:"text_body,omitempty"`
	Standard *StandardFields `json:"standard,omitempty" yaml:"standard,omitempty"`
}

// NewStandard builds a standard template record.
func NewStandard(name, alias, subject, layout string) Template {
	return Template{
		Name:  name,
		Alias: alias,
		Standard: &StandardFields{
			Subject:        subject,
			LayoutTemplate: layout,
		},
	}
}

// NewLayout builds a layout record.
func NewLayout(name, alias string) Template {
	return Template{Name: name, Alias: alias}
}

// Type reports which variant the record is.
func (t Template) Type() TemplateType {
	if t.Standard == nil {
		return TemplateTypeLayout
	}
	return TemplateTypeStandard
}

// IsLayout reports whether the record is a layout.
func (t Template) IsLayout() bool {
	return t.Standard == nil
}

// Subject returns the subject of a standard template, or "" for layouts.
func (t Template) Subject() string {
	if t.Standard == nil {
		return ""
	}
	return t.Standard.Subject
}

// LayoutTemplate returns the referenced layout alias, or "" when none is set.
func (t Template) LayoutTemplate() string {
	if t.Standard == nil {
		return ""
	}
	return t.Standard.LayoutTemplate
}

// WithBodies returns a copy with the given bodies.
func (t Template) WithBodies(html, text string) Template {
	t.HTMLBody = html
	t.TextBody = text
	if t.Standard != nil {
		fields := *t.Standard
		t.Standard = &fields
	}
	return t
}

// DisplayName prefers the alias, falling back to the name.
func (t Template) DisplayName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Validate checks the fields required for sync participation.
func (t Template) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(t.Name) == "" {
		validation.AddMessage("name", "name is required")
	}
	if strings.TrimSpace(t.Alias) == "" {
		validation.AddMessage("alias", "alias is required")
	}
	return validation.Err()
}
