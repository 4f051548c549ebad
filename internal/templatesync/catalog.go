package templatesync

import (
	"context"
	"fmt"

	"github.com/opencode-ai/pmsync/internal/logging"
	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/opencode-ai/pmsync/internal/postmark"
	"github.com/rs/zerolog"
)

// DefaultPageSize is the number of summaries requested per list call.
const DefaultPageSize = 300

// CatalogClient lists remote templates and fetches their bodies.
type CatalogClient interface {
	ListTemplates(ctx context.Context, opts postmark.ListOptions) (*postmark.TemplateList, error)
	GetTemplate(ctx context.Context, idOrAlias string) (*postmark.Template, error)
}

// RemoteFetchError means the remote listing failed and no catalog is available.
type RemoteFetchError struct {
	Offset int
	Err    error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch remote templates (offset %d): %v", e.Offset, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// FetchFailure is a listed template whose body could not be fetched.
type FetchFailure struct {
	IDOrAlias string `json:"id_or_alias"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

// Catalog is the remote template list with bodies populated.
type Catalog struct {
	Templates  []models.Template `json:"templates"`
	Failed     []FetchFailure    `json:"failed,omitempty"`
	TotalCount int               `json:"total_count"`
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPageSize sets the list page size. Values below one are ignored.
func WithPageSize(size int) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.pageSize = size
		}
	}
}

// WithTemplateType restricts the listing to one template type.
func WithTemplateType(filter postmark.TemplateTypeFilter) FetcherOption {
	return func(f *Fetcher) {
		if filter != "" {
			f.templateType = filter
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithProgress registers a callback invoked before each body fetch.
func WithProgress(fn func(done, total int, summary postmark.TemplateSummary)) FetcherOption {
	return func(f *Fetcher) {
		f.progress = fn
	}
}

// Fetcher builds the remote catalog.
type Fetcher struct {
	client       CatalogClient
	pageSize     int
	templateType postmark.TemplateTypeFilter
	logger       zerolog.Logger
	progress     func(done, total int, summary postmark.TemplateSummary)
}

// NewFetcher creates a Fetcher for client.
func NewFetcher(client CatalogClient, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:       client,
		pageSize:     DefaultPageSize,
		templateType: postmark.TemplateTypeAll,
		logger:       logging.Component("templatesync"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// List pages through the template list and returns every summary in list
// order. Any listing error aborts with a *RemoteFetchError.
func (f *Fetcher) List(ctx context.Context) ([]postmark.TemplateSummary, int, error) {
	var (
		summaries []postmark.TemplateSummary
		total     int
	)

	for offset := 0; ; {
		page, err := f.client.ListTemplates(ctx, postmark.ListOptions{
			Count:        f.pageSize,
			Offset:       offset,
			TemplateType: f.templateType,
		})
		if err != nil {
			return nil, 0, &RemoteFetchError{Offset: offset, Err: err}
		}

		total = page.TotalCount
		summaries = append(summaries, page.Templates...)
		offset += len(page.Templates)

		f.logger.Debug().
			Int("offset", offset).
			Int("total", total).
			Int("page", len(page.Templates)).
			Msg("listed templates")

		if len(page.Templates) == 0 || offset >= total {
			break
		}
	}

	return summaries, total, nil
}

// Fetch lists the remote templates and fetches each body in turn. A failed
// body fetch is logged and the template is left out of the catalog.
func (f *Fetcher) Fetch(ctx context.Context) (*Catalog, error) {
	summaries, total, err := f.List(ctx)
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{
		Templates:  make([]models.Template, 0, len(summaries)),
		TotalCount: total,
	}

	for i, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.progress != nil {
			f.progress(i, len(summaries), summary)
		}

		key := summary.IDOrAlias()
		template, err := f.fetchOne(ctx, key)
		if err != nil {
			f.logger.Warn().Err(err).Str("template", key).Msg("failed to fetch template body")
			catalog.Failed = append(catalog.Failed, FetchFailure{
				IDOrAlias: key,
				Name:      summary.Name,
				Error:     err.Error(),
			})
			continue
		}
		catalog.Templates = append(catalog.Templates, template)
	}

	return catalog, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, idOrAlias string) (models.Template, error) {
	remote, err := f.client.GetTemplate(ctx, idOrAlias)
	if err != nil {
		return models.Template{}, err
	}
	return remote.Model()
}
