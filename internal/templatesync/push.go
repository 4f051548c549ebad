package templatesync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/opencode-ai/pmsync/internal/postmark"
)

// ErrMissingAlias is returned when an item that needs an edit call has no alias.
var ErrMissingAlias = errors.New("template alias is required to edit a template")

// TemplateWriter creates and edits remote templates. *postmark.Client
// satisfies it.
type TemplateWriter interface {
	CreateTemplate(ctx context.Context, template models.Template) (*postmark.TemplateResult, error)
	EditTemplate(ctx context.Context, idOrAlias string, template models.Template) (*postmark.TemplateResult, error)
}

// PushHooks observe a push. Nil hooks are skipped.
type PushHooks struct {
	BeforeEach func(index, total int, item models.ChangeItem)
	OnError    func(item models.ChangeItem, err error)
	OnSuccess  func(item models.ChangeItem, result *postmark.TemplateResult)
	OnComplete func(failures int)
}

// PushOutcome is the result of one item.
type PushOutcome struct {
	Item     models.ChangeItem `json:"item"`
	Created  bool              `json:"created"`
	Err      error             `json:"-" yaml:"-"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// OK reports whether the item was pushed.
func (o PushOutcome) OK() bool {
	return o.Err == nil
}

// PushResult accumulates the outcome of a push.
type PushResult struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []PushOutcome `json:"outcomes"`
}

func (r *PushResult) record(outcome PushOutcome) {
	r.Attempted++
	if outcome.OK() {
		r.Succeeded++
	} else {
		r.Failed++
	}
	if outcome.Err != nil {
		outcome.Error = outcome.Err.Error()
	}
	r.Outcomes = append(r.Outcomes, outcome)
}

// PushOrder returns the items in the order Push applies them: layouts first,
// then standard templates, each group in change-set order.
func PushOrder(changes models.ChangeSet) models.ChangeSet {
	ordered := slices.Clone(changes)
	slices.SortStableFunc(ordered, func(a, b models.ChangeItem) int {
		switch {
		case a.Template.IsLayout() == b.Template.IsLayout():
			return 0
		case a.Template.IsLayout():
			return -1
		default:
			return 1
		}
	})
	return ordered
}

// Push applies changes one item at a time. Added items are created, all
// others are edited by alias. A failed item is reported through OnError and
// the batch carries on. OnComplete is called once with the failure count.
//
// If the context is cancelled the remaining items are not attempted and the
// context error is returned with the partial result.
func Push(ctx context.Context, client TemplateWriter, changes models.ChangeSet, hooks PushHooks) (*PushResult, error) {
	ordered := PushOrder(changes)
	for _, item := range ordered {
		if item.Status != models.ChangeStatusAdded && item.Template.Alias == "" {
			return nil, fmt.Errorf("%w: %q", ErrMissingAlias, item.Template.Name)
		}
	}

	result := &PushResult{Outcomes: make([]PushOutcome, 0, len(ordered))}
	var pushErr error

	for i, item := range ordered {
		if err := ctx.Err(); err != nil {
			pushErr = err
			break
		}
		if hooks.BeforeEach != nil {
			hooks.BeforeEach(i, len(ordered), item)
		}

		started := time.Now()
		response, err := pushOne(ctx, client, item)
		outcome := PushOutcome{
			Item:     item,
			Created:  item.Status == models.ChangeStatusAdded,
			Err:      err,
			Duration: time.Since(started),
		}
		result.record(outcome)

		if err != nil {
			if hooks.OnError != nil {
				hooks.OnError(item, err)
			}
			continue
		}
		if hooks.OnSuccess != nil {
			hooks.OnSuccess(item, response)
		}
	}

	if hooks.OnComplete != nil {
		hooks.OnComplete(result.Failed)
	}
	return result, pushErr
}

func pushOne(ctx context.Context, client TemplateWriter, item models.ChangeItem) (*postmark.TemplateResult, error) {
	if item.Status == models.ChangeStatusAdded {
		return client.CreateTemplate(ctx, item.Template)
	}
	return client.EditTemplate(ctx, item.Template.Alias, item.Template)
}
