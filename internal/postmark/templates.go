package postmark

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/opencode-ai/pmsync/internal/models"
)

// TemplateTypeFilter restricts a listing to one template type.
type TemplateTypeFilter string

const (
	TemplateTypeAll      TemplateTypeFilter = "All"
	TemplateTypeStandard TemplateTypeFilter = "Standard"
	TemplateTypeLayout   TemplateTypeFilter = "Layout"
)

// ListOptions page through the template list.
type ListOptions struct {
	Count        int
	Offset       int
	TemplateType TemplateTypeFilter
}

// TemplateSummary is one entry of the list endpoint; it has no bodies.
type TemplateSummary struct {
	Active         bool    `json:"Active"`
	TemplateID     int64   `json:"TemplateId"`
	Name           string  `json:"Name"`
	Alias          *string `json:"Alias"`
	TemplateType   string  `json:"TemplateType"`
	LayoutTemplate *string `json:"LayoutTemplate"`
}

// IDOrAlias returns the alias when set, otherwise the numeric ID.
func (s TemplateSummary) IDOrAlias() string {
	if alias := deref(s.Alias); alias != "" {
		return alias
	}
	return strconv.FormatInt(s.TemplateID, 10)
}

// TemplateList is the list endpoint response.
type TemplateList struct {
	TotalCount int               `json:"TotalCount"`
	Templates  []TemplateSummary `json:"Templates"`
}

// Template is the full record returned by the get endpoint.
type Template struct {
	TemplateID         int64   `json:"TemplateId"`
	AssociatedServerID int64   `json:"AssociatedServerId"`
	Active             bool    `json:"Active"`
	Name               string  `json:"Name"`
	Alias              *string `json:"Alias"`
	TemplateType       string  `json:"TemplateType"`
	Subject            *string `json:"Subject"`
	HTMLBody           *string `json:"HtmlBody"`
	TextBody           *string `json:"TextBody"`
	LayoutTemplate     *string `json:"LayoutTemplate"`
}

// Model converts the wire record into the shared tagged variant.
func (t *Template) Model() (models.Template, error) {
	templateType, err := models.ParseTemplateType(t.TemplateType)
	if err != nil {
		return models.Template{}, fmt.Errorf("template %d: %w", t.TemplateID, err)
	}

	var record models.Template
	if templateType == models.TemplateTypeLayout {
		record = models.NewLayout(t.Name, deref(t.Alias))
	} else {
		record = models.NewStandard(t.Name, deref(t.Alias), deref(t.Subject), deref(t.LayoutTemplate))
	}
	return record.WithBodies(deref(t.HTMLBody), deref(t.TextBody)), nil
}

// TemplateResult is returned by create and edit.
type TemplateResult struct {
	TemplateID     int64   `json:"TemplateId"`
	Name           string  `json:"Name"`
	Active         bool    `json:"Active"`
	Alias          *string `json:"Alias"`
	TemplateType   string  `json:"TemplateType"`
	LayoutTemplate *string `json:"LayoutTemplate"`
}

// ListTemplates fetches one page of template summaries.
func (c *Client) ListTemplates(ctx context.Context, opts ListOptions) (*TemplateList, error) {
	query := url.Values{}
	if opts.Count > 0 {
		query.Set("count", strconv.Itoa(opts.Count))
	}
	query.Set("offset", strconv.Itoa(max(opts.Offset, 0)))
	if opts.TemplateType != "" {
		query.Set("templateType", string(opts.TemplateType))
	}

	var list TemplateList
	if err := c.do(ctx, http.MethodGet, "/templates", query, nil, &list); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return &list, nil
}

// GetTemplate fetches one template including its bodies.
func (c *Client) GetTemplate(ctx context.Context, idOrAlias string) (*Template, error) {
	path, err := templatePath(idOrAlias)
	if err != nil {
		return nil, err
	}

	var template Template
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &template); err != nil {
		return nil, fmt.Errorf("get template %s: %w", idOrAlias, err)
	}
	return &template, nil
}

// CreateTemplate creates a template or layout.
func (c *Client) CreateTemplate(ctx context.Context, template models.Template) (*TemplateResult, error) {
	var result TemplateResult
	if err := c.do(ctx, http.MethodPost, "/templates", nil, templatePayload(template, true), &result); err != nil {
		return nil, fmt.Errorf("create template %s: %w", template.DisplayName(), err)
	}
	return &result, nil
}

// EditTemplate replaces the content of an existing template. The type cannot change.
func (c *Client) EditTemplate(ctx context.Context, idOrAlias string, template models.Template) (*TemplateResult, error) {
	path, err := templatePath(idOrAlias)
	if err != nil {
		return nil, err
	}

	var result TemplateResult
	if err := c.do(ctx, http.MethodPut, path, nil, templatePayload(template, false), &result); err != nil {
		return nil, fmt.Errorf("edit template %s: %w", idOrAlias, err)
	}
	return &result, nil
}

// DeleteTemplate removes a template or an unused layout.
func (c *Client) DeleteTemplate(ctx context.Context, idOrAlias string) error {
	path, err := templatePath(idOrAlias)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete template %s: %w", idOrAlias, err)
	}
	return nil
}

// templatePayload builds the request body. Layouts never carry Subject or
// LayoutTemplate; standard templates always send LayoutTemplate so an empty
// local value clears the remote one.
func templatePayload(template models.Template, create bool) map[string]any {
	payload := map[string]any{
		"Name":     template.Name,
		"HtmlBody": template.HTMLBody,
		"TextBody": template.TextBody,
	}
	if template.Alias != "" {
		payload["Alias"] = template.Alias
	}
	if create {
		payload["TemplateType"] = string(template.Type())
	}
	if template.Standard != nil {
		payload["Subject"] = template.Standard.Subject
		if layout := template.Standard.LayoutTemplate; layout != "" {
			payload["LayoutTemplate"] = layout
		} else {
			payload["LayoutTemplate"] = nil
		}
	}
	return payload
}

func templatePath(idOrAlias string) (string, error) {
	idOrAlias = strings.TrimSpace(idOrAlias)
	if idOrAlias == "" {
		return "", fmt.Errorf("template id or alias is required")
	}
	return "/templates/" + url.PathEscape(idOrAlias), nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
