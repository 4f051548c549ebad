// Package events records push outcomes in the history journal.
package events

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/opencode-ai/pmsync/internal/models"
	"golang.org/x/crypto/blake2b"
)

// Repository is the minimal interface needed to write push history.
type Repository interface {
	CreateRun(ctx context.Context, run *models.PushRun) error
	AppendRecord(ctx context.Context, record *models.PushRecord) error
	FinishRun(ctx context.Context, runID string, total, failed int) error
}

// DigestReader looks up what was last pushed for an alias.
type DigestReader interface {
	LastDigest(ctx context.Context, host, alias string) (string, error)
}

// Drifted returns the Modified items whose local content is exactly what was
// last pushed to host. Their remote copy was changed elsewhere since then.
func Drifted(ctx context.Context, repo DigestReader, host string, changes models.ChangeSet) ([]models.ChangeItem, error) {
	if repo == nil {
		return nil, fmt.Errorf("push repository is required")
	}

	var drifted []models.ChangeItem
	for _, item := range changes {
		if item.Status != models.ChangeStatusModified {
			continue
		}
		last, err := repo.LastDigest(ctx, host, item.Template.Alias)
		if err != nil {
			return nil, err
		}
		if last != "" && last == Digest(item.Template) {
			drifted = append(drifted, item)
		}
	}
	return drifted, nil
}

// Digest fingerprints the pushable content of a template.
func Digest(template models.Template) string {
	fields := []string{
		string(template.Type()),
		template.Name,
		template.Alias,
		template.Subject(),
		template.LayoutTemplate(),
		template.HTMLBody,
		template.TextBody,
	}

	h, _ := blake2b.New256(nil)
	for _, field := range fields {
		fmt.Fprintf(h, "%d:%s;", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LogRunStarted records the start of a push run.
func LogRunStarted(ctx context.Context, repo Repository, directory, host string, total int) (*models.PushRun, error) {
	if repo == nil {
		return nil, fmt.Errorf("push repository is required")
	}

	run := &models.PushRun{
		Directory: directory,
		Host:      host,
		StartedAt: time.Now().UTC(),
		Total:     total,
	}
	if err := repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// LogItemPushed records the outcome of one change-set item.
func LogItemPushed(ctx context.Context, repo Repository, runID string, item models.ChangeItem, pushErr error) error {
	if repo == nil {
		return fmt.Errorf("push repository is required")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}

	record := &models.PushRecord{
		RunID:        runID,
		Alias:        item.Template.Alias,
		Name:         item.Template.Name,
		TemplateType: item.Template.Type(),
		Status:       item.Status,
		Digest:       Digest(item.Template),
	}
	if pushErr != nil {
		record.Error = pushErr.Error()
	}
	return repo.AppendRecord(ctx, record)
}

// LogRunFinished stores the final tally of a run.
func LogRunFinished(ctx context.Context, repo Repository, run *models.PushRun, failed int) error {
	if repo == nil {
		return fmt.Errorf("push repository is required")
	}
	if run == nil {
		return fmt.Errorf("run is required")
	}

	run.Failed = failed
	now := time.Now().UTC()
	run.FinishedAt = &now
	return repo.FinishRun(ctx, run.ID, run.Total, failed)
}
