package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/opencode-ai/pmsync/internal/postmark"
)

const testToken = "test-token"

// fakePostmark is an in-memory template store speaking the template API.
type fakePostmark struct {
	mu        sync.Mutex
	nextID    int64
	templates []*postmark.Template
	calls     []string

	// onMutation runs before each non-GET request is handled.
	onMutation func()
}

func newFakePostmark(t *testing.T, templates ...*postmark.Template) (*fakePostmark, *httptest.Server) {
	t.Helper()
	fake := &fakePostmark{nextID: 100}
	for _, template := range templates {
		fake.add(template)
	}
	server := httptest.NewServer(http.HandlerFunc(fake.serveHTTP))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakePostmark) add(template *postmark.Template) {
	if template.TemplateID == 0 {
		f.nextID++
		template.TemplateID = f.nextID
	}
	template.Active = true
	f.templates = append(f.templates, template)
}

func (f *fakePostmark) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.calls {
		if !strings.HasPrefix(call, http.MethodGet) {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakePostmark) find(key string) (int, *postmark.Template) {
	for i, template := range f.templates {
		if strconv.FormatInt(template.TemplateID, 10) == key || (template.Alias != nil && *template.Alias == key) {
			return i, template
		}
	}
	return -1, nil
}

func (f *fakePostmark) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	if r.Header.Get("X-Postmark-Server-Token") != testToken {
		writeAPIError(w, http.StatusUnauthorized, postmark.ErrorCodeInvalidToken, "Bad or missing API token.")
		return
	}

	if r.Method != http.MethodGet && f.onMutation != nil {
		f.onMutation()
	}

	key := strings.TrimPrefix(r.URL.Path, "/templates/")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/templates":
		f.list(w, r)
	case r.Method == http.MethodGet:
		_, template := f.find(key)
		if template == nil {
			writeAPIError(w, http.StatusUnprocessableEntity, postmark.ErrorCodeTemplateNotFound, "The template was not found.")
			return
		}
		writeJSON(w, template)
	case r.Method == http.MethodPost && r.URL.Path == "/templates":
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		template := &postmark.Template{TemplateType: stringField(payload, "TemplateType")}
		applyPayload(template, payload)
		f.add(template)
		writeJSON(w, postmark.TemplateResult{TemplateID: template.TemplateID, Name: template.Name, Alias: template.Alias, TemplateType: template.TemplateType, Active: true})
	case r.Method == http.MethodPut:
		_, template := f.find(key)
		if template == nil {
			writeAPIError(w, http.StatusUnprocessableEntity, postmark.ErrorCodeTemplateNotFound, "The template was not found.")
			return
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		applyPayload(template, payload)
		writeJSON(w, postmark.TemplateResult{TemplateID: template.TemplateID, Name: template.Name, Alias: template.Alias, TemplateType: template.TemplateType, Active: true})
	case r.Method == http.MethodDelete:
		i, template := f.find(key)
		if template == nil {
			writeAPIError(w, http.StatusUnprocessableEntity, postmark.ErrorCodeTemplateNotFound, "The template was not found.")
			return
		}
		f.templates = append(f.templates[:i], f.templates[i+1:]...)
		_, _ = io.WriteString(w, `{"ErrorCode":0,"Message":"Template removed."}`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostmark) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	count, _ := strconv.Atoi(query.Get("count"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	filter := query.Get("templateType")

	var matching []postmark.TemplateSummary
	for _, template := range f.templates {
		if filter != "" && filter != string(postmark.TemplateTypeAll) && filter != template.TemplateType {
			continue
		}
		matching = append(matching, postmark.TemplateSummary{
			Active:         template.Active,
			TemplateID:     template.TemplateID,
			Name:           template.Name,
			Alias:          template.Alias,
			TemplateType:   template.TemplateType,
			LayoutTemplate: template.LayoutTemplate,
		})
	}

	page := []postmark.TemplateSummary{}
	if offset < len(matching) {
		end := len(matching)
		if count > 0 && offset+count < end {
			end = offset + count
		}
		page = matching[offset:end]
	}
	writeJSON(w, postmark.TemplateList{TotalCount: len(matching), Templates: page})
}

func applyPayload(template *postmark.Template, payload map[string]any) {
	if value, ok := payload["Name"].(string); ok {
		template.Name = value
	}
	for field, target := range map[string]**string{
		"Alias":          &template.Alias,
		"Subject":        &template.Subject,
		"HtmlBody":       &template.HTMLBody,
		"TextBody":       &template.TextBody,
		"LayoutTemplate": &template.LayoutTemplate,
	} {
		value, present := payload[field]
		if !present {
			continue
		}
		if s, ok := value.(string); ok {
			*target = &s
		} else {
			*target = nil
		}
	}
}

func stringField(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ErrorCode": code, "Message": message})
}

func sptr(s string) *string { return &s }

func remoteStandard(name, alias, subject, html, layout string) *postmark.Template {
	template := &postmark.Template{Name: name, Alias: sptr(alias), TemplateType: "Standard", Subject: sptr(subject), HTMLBody: sptr(html)}
	if layout != "" {
		template.LayoutTemplate = sptr(layout)
	}
	return template
}

func remoteLayout(name, alias, html string) *postmark.Template {
	return &postmark.Template{Name: name, Alias: sptr(alias), TemplateType: "Layout", HTMLBody: sptr(html)}
}
