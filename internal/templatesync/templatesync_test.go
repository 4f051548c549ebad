package templatesync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/opencode-ai/pmsync/internal/postmark"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDiffIdenticalRecords(t *testing.T) {
	a := models.NewStandard("Welcome", "welcome", "Hi", "base").WithBodies("<p>Hi</p>", "")
	b := models.NewStandard("Welcome", "welcome", "Hi", "base").WithBodies("<p>Hi</p>", "")
	require.True(t, Diff(a, b).Empty())
}

func TestDiffLayoutOnly(t *testing.T) {
	remote := models.NewStandard("Welcome", "welcome", "Hi", "base")
	local := models.NewStandard("Welcome", "welcome", "Hi", "other")
	require.Equal(t, models.DiffResult{models.DiffFieldLayout}, Diff(remote, local))

	local = models.NewStandard("Welcome", "welcome", "Hi", "")
	require.Equal(t, models.DiffResult{models.DiffFieldLayout}, Diff(remote, local))
}

func TestDiffAllFields(t *testing.T) {
	remote := models.NewStandard("Old", "a", "Old subject", "base").WithBodies("<p>old</p>", "old")
	local := models.NewStandard("New", "a", "New subject", "").WithBodies("<p>new</p>", "")
	require.Equal(t, models.DiffResult{
		models.DiffFieldHTML,
		models.DiffFieldText,
		models.DiffFieldSubject,
		models.DiffFieldName,
		models.DiffFieldLayout,
	}, Diff(remote, local))
}

func TestDiffLayoutsIgnoreStandardFields(t *testing.T) {
	remote := models.NewStandard("Base", "base", "Subject", "other")
	local := models.NewLayout("Base", "base")
	require.True(t, Diff(remote, local).Empty())
}

func TestReconcile(t *testing.T) {
	a := models.NewStandard("A", "a", "Hi", "").WithBodies("<p>a</p>", "")

	t.Run("unmatched is added", func(t *testing.T) {
		changes := Reconcile(nil, []models.Template{a}, false)
		require.Len(t, changes, 1)
		require.Equal(t, models.ChangeStatusAdded, changes[0].Status)
		require.True(t, changes[0].New)
		require.Nil(t, changes[0].Remote)
	})

	t.Run("unchanged is excluded", func(t *testing.T) {
		changes := Reconcile([]models.Template{a}, []models.Template{a}, false)
		require.Empty(t, changes)
	})

	t.Run("unchanged is kept with push all", func(t *testing.T) {
		changes := Reconcile([]models.Template{a}, []models.Template{a}, true)
		require.Len(t, changes, 1)
		require.Equal(t, models.ChangeStatusUnmodified, changes[0].Status)
		require.False(t, changes[0].New)
		require.NotNil(t, changes[0].Remote)
	})

	t.Run("changed is modified", func(t *testing.T) {
		remote := a.WithBodies("<p>old</p>", "")
		changes := Reconcile([]models.Template{remote}, []models.Template{a}, false)
		require.Len(t, changes, 1)
		require.Equal(t, models.ChangeStatusModified, changes[0].Status)
		require.True(t, changes[0].Diff.Has(models.DiffFieldHTML))
		require.Equal(t, "<p>old</p>", changes[0].Remote.HTMLBody)
	})

	t.Run("first remote match wins", func(t *testing.T) {
		first := a
		second := a.WithBodies("<p>other</p>", "")
		changes := Reconcile([]models.Template{first, second}, []models.Template{a}, false)
		require.Empty(t, changes)
	})

	t.Run("keeps local order", func(t *testing.T) {
		b := models.NewLayout("B", "b")
		c := models.NewStandard("C", "c", "", "")
		changes := Reconcile(nil, []models.Template{c, b, a}, false)
		require.Equal(t, []string{"c", "b", "a"}, aliases(changes))
	})
}

func aliases(changes models.ChangeSet) []string {
	out := make([]string, len(changes))
	for i, item := range changes {
		out[i] = item.Template.Alias
	}
	return out
}

type call struct {
	method string
	alias  string
}

type fakeWriter struct {
	calls []call
	fail  map[string]error
}

func (f *fakeWriter) CreateTemplate(ctx context.Context, template models.Template) (*postmark.TemplateResult, error) {
	return f.handle("create", template)
}

func (f *fakeWriter) EditTemplate(ctx context.Context, idOrAlias string, template models.Template) (*postmark.TemplateResult, error) {
	return f.handle("edit", template)
}

func (f *fakeWriter) handle(method string, template models.Template) (*postmark.TemplateResult, error) {
	f.calls = append(f.calls, call{method: method, alias: template.Alias})
	if err := f.fail[template.Alias]; err != nil {
		return nil, err
	}
	alias := template.Alias
	return &postmark.TemplateResult{Name: template.Name, Alias: &alias, TemplateType: string(template.Type())}, nil
}

func item(template models.Template, status models.ChangeStatus) models.ChangeItem {
	return models.ChangeItem{Template: template, Status: status, New: status == models.ChangeStatusAdded}
}

func TestPushLayoutsFirst(t *testing.T) {
	writer := &fakeWriter{}
	changes := models.ChangeSet{
		item(models.NewStandard("T1", "t1", "", ""), models.ChangeStatusAdded),
		item(models.NewLayout("L1", "l1"), models.ChangeStatusModified),
		item(models.NewStandard("T2", "t2", "", ""), models.ChangeStatusModified),
	}

	result, err := Push(context.Background(), writer, changes, PushHooks{})
	require.NoError(t, err)
	require.Equal(t, []call{
		{method: "edit", alias: "l1"},
		{method: "create", alias: "t1"},
		{method: "edit", alias: "t2"},
	}, writer.calls)
	require.Equal(t, 3, result.Succeeded)
	require.Zero(t, result.Failed)
}

func TestPushIsolatesFailures(t *testing.T) {
	writer := &fakeWriter{fail: map[string]error{"b": errors.New("boom")}}
	changes := models.ChangeSet{
		item(models.NewStandard("A", "a", "", ""), models.ChangeStatusAdded),
		item(models.NewStandard("B", "b", "", ""), models.ChangeStatusModified),
		item(models.NewStandard("C", "c", "", ""), models.ChangeStatusAdded),
	}

	var (
		errored   []string
		completed []int
		before    []int
	)
	result, err := Push(context.Background(), writer, changes, PushHooks{
		BeforeEach: func(index, total int, item models.ChangeItem) {
			require.Equal(t, 3, total)
			before = append(before, index)
		},
		OnError: func(item models.ChangeItem, err error) {
			errored = append(errored, item.Template.Alias)
		},
		OnComplete: func(failures int) {
			completed = append(completed, failures)
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, errored)
	require.Equal(t, []int{1}, completed)
	require.Equal(t, []int{0, 1, 2}, before)
	require.Len(t, writer.calls, 3)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 2, result.Succeeded)
	require.EqualError(t, result.Outcomes[1].Err, "boom")
}

func TestPushRequiresAliasForEdit(t *testing.T) {
	writer := &fakeWriter{}
	changes := models.ChangeSet{
		item(models.NewStandard("A", "a", "", ""), models.ChangeStatusAdded),
		item(models.NewStandard("No alias", "", "", ""), models.ChangeStatusModified),
	}

	completed := 0
	_, err := Push(context.Background(), writer, changes, PushHooks{OnComplete: func(int) { completed++ }})
	require.ErrorIs(t, err, ErrMissingAlias)
	require.Empty(t, writer.calls)
	require.Zero(t, completed)
}

func TestPushStopsOnCancel(t *testing.T) {
	writer := &fakeWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	changes := models.ChangeSet{
		item(models.NewStandard("A", "a", "", ""), models.ChangeStatusAdded),
		item(models.NewStandard("B", "b", "", ""), models.ChangeStatusAdded),
	}

	completed := 0
	result, err := Push(ctx, writer, changes, PushHooks{
		OnSuccess:  func(models.ChangeItem, *postmark.TemplateResult) { cancel() },
		OnComplete: func(int) { completed++ },
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, result.Attempted)
	require.Len(t, writer.calls, 1)
	require.Equal(t, 1, completed)
}

type fakeCatalog struct {
	summaries []postmark.TemplateSummary
	templates map[string]*postmark.Template
	listErr   error
	getErr    map[string]error
	offsets   []int
}

func (f *fakeCatalog) ListTemplates(ctx context.Context, opts postmark.ListOptions) (*postmark.TemplateList, error) {
	f.offsets = append(f.offsets, opts.Offset)
	if f.listErr != nil {
		return nil, f.listErr
	}
	end := min(opts.Offset+opts.Count, len(f.summaries))
	page := []postmark.TemplateSummary{}
	if opts.Offset < end {
		page = f.summaries[opts.Offset:end]
	}
	return &postmark.TemplateList{TotalCount: len(f.summaries), Templates: page}, nil
}

func (f *fakeCatalog) GetTemplate(ctx context.Context, idOrAlias string) (*postmark.Template, error) {
	if err := f.getErr[idOrAlias]; err != nil {
		return nil, err
	}
	template, ok := f.templates[idOrAlias]
	if !ok {
		return nil, postmark.ErrNotFound
	}
	return template, nil
}

func strptr(s string) *string { return &s }

func newFakeCatalog(n int) *fakeCatalog {
	catalog := &fakeCatalog{templates: map[string]*postmark.Template{}, getErr: map[string]error{}}
	for i := 0; i < n; i++ {
		alias := fmt.Sprintf("t%d", i)
		catalog.summaries = append(catalog.summaries, postmark.TemplateSummary{TemplateID: int64(i + 1), Name: alias, Alias: strptr(alias), TemplateType: "Standard"})
		catalog.templates[alias] = &postmark.Template{TemplateID: int64(i + 1), Name: alias, Alias: strptr(alias), TemplateType: "Standard", HTMLBody: strptr("<p>" + alias + "</p>")}
	}
	return catalog
}

func TestFetchPaginates(t *testing.T) {
	client := newFakeCatalog(5)

	catalog, err := NewFetcher(client, WithPageSize(2), WithLogger(zerolog.Nop())).Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 4}, client.offsets)
	require.Len(t, catalog.Templates, 5)
	require.Equal(t, 5, catalog.TotalCount)
	require.Equal(t, "t0", catalog.Templates[0].Alias)
	require.Equal(t, "<p>t4</p>", catalog.Templates[4].HTMLBody)
}

func TestFetchDropsFailedBodies(t *testing.T) {
	client := newFakeCatalog(3)
	client.getErr["t1"] = errors.New("timeout")

	catalog, err := NewFetcher(client, WithLogger(zerolog.Nop())).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog.Templates, 2)
	require.Len(t, catalog.Failed, 1)
	require.Equal(t, "t1", catalog.Failed[0].IDOrAlias)
}

func TestFetchByIDWithoutAlias(t *testing.T) {
	client := &fakeCatalog{templates: map[string]*postmark.Template{
		"42": {TemplateID: 42, Name: "Legacy", TemplateType: "Standard"},
	}}
	client.summaries = []postmark.TemplateSummary{{TemplateID: 42, Name: "Legacy", TemplateType: "Standard"}}

	catalog, err := NewFetcher(client, WithLogger(zerolog.Nop())).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog.Templates, 1)
	require.Equal(t, "Legacy", catalog.Templates[0].Name)
}

func TestFetchListErrorIsFatal(t *testing.T) {
	client := &fakeCatalog{listErr: postmark.ErrUnauthorized}

	_, err := NewFetcher(client, WithLogger(zerolog.Nop())).Fetch(context.Background())
	var fetchErr *RemoteFetchError
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, postmark.ErrUnauthorized)
}

func TestFetchEmptyServer(t *testing.T) {
	client := newFakeCatalog(0)

	catalog, err := NewFetcher(client, WithLogger(zerolog.Nop())).Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, catalog.Templates)
	require.Equal(t, []int{0}, client.offsets)
}
