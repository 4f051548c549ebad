package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/pmsync/internal/models"
)

// Push history errors.
var (
	ErrRunNotFound  = errors.New("push run not found")
	ErrAmbiguousRun = errors.New("push run prefix matches more than one run")
	ErrInvalidRun   = errors.New("invalid push run")
	ErrInvalidEntry = errors.New("invalid push record")
)

// PushRepository stores push runs and their per-item outcomes.
type PushRepository struct {
	db *DB
}

// NewPushRepository creates a new PushRepository.
func NewPushRepository(db *DB) *PushRepository {
	return &PushRepository{db: db}
}

// CreateRun inserts a run. ID and StartedAt are filled in when empty.
func (r *PushRepository) CreateRun(ctx context.Context, run *models.PushRun) error {
	if run.Directory == "" || run.Host == "" {
		return ErrInvalidRun
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	} else {
		run.StartedAt = run.StartedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_runs (id, directory, host, started_at, total, failed)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Directory,
		run.Host,
		run.StartedAt.Format(time.RFC3339),
		run.Total,
		run.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert push run: %w", err)
	}
	return nil
}

// AppendRecord adds one item outcome to a run.
func (r *PushRepository) AppendRecord(ctx context.Context, record *models.PushRecord) error {
	if record.RunID == "" || record.Alias == "" || record.Status == "" {
		return ErrInvalidEntry
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	} else {
		record.RecordedAt = record.RecordedAt.UTC()
	}

	var errText *string
	if record.Error != "" {
		errText = &record.Error
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_records (
			id, run_id, seq, alias, name, template_type, status, digest, error, recorded_at
		) VALUES (
			?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM push_records WHERE run_id = ?),
			?, ?, ?, ?, ?, ?, ?
		)
	`,
		record.ID,
		record.RunID,
		record.RunID,
		record.Alias,
		record.Name,
		string(record.TemplateType),
		string(record.Status),
		record.Digest,
		errText,
		record.RecordedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert push record: %w", err)
	}
	return nil
}

// FinishRun stores the final tally of a run.
func (r *PushRepository) FinishRun(ctx context.Context, runID string, total, failed int) error {
	finished := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE push_runs SET finished_at = ?, total = ?, failed = ? WHERE id = ?
	`, finished.Format(time.RFC3339), total, failed, runID)
	if err != nil {
		return fmt.Errorf("failed to finish push run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish push run: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (r *PushRepository) GetRun(ctx context.Context, id string) (*models.PushRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, directory, host, started_at, finished_at, total, failed
		FROM push_runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// FindRun resolves a full run ID or a unique prefix of one.
func (r *PushRepository) FindRun(ctx context.Context, idOrPrefix string) (*models.PushRun, error) {
	if idOrPrefix == "" {
		return nil, ErrRunNotFound
	}
	run, err := r.GetRun(ctx, idOrPrefix)
	if !errors.Is(err, ErrRunNotFound) {
		return run, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, directory, host, started_at, finished_at, total, failed
		FROM push_runs
		WHERE substr(id, 1, ?) = ?
		LIMIT 2
	`, len(idOrPrefix), idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query push runs: %w", err)
	}
	defer rows.Close()

	var matches []*models.PushRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push runs: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, ErrRunNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, ErrAmbiguousRun
	}
}

// ListRuns returns the most recent runs, newest first.
func (r *PushRepository) ListRuns(ctx context.Context, limit int) ([]*models.PushRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, directory, host, started_at, finished_at, total, failed
		FROM push_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query push runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PushRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push runs: %w", err)
	}
	return runs, nil
}

// ListRecords returns the item outcomes of a run in push order.
func (r *PushRepository) ListRecords(ctx context.Context, runID string) ([]*models.PushRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, alias, name, template_type, status, digest, error, recorded_at
		FROM push_records
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push records: %w", err)
	}
	defer rows.Close()

	var records []*models.PushRecord
	for rows.Next() {
		var (
			record       models.PushRecord
			templateType string
			status       string
			errText      sql.NullString
			recordedAt   string
		)
		if err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.Alias,
			&record.Name,
			&templateType,
			&status,
			&record.Digest,
			&errText,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan push record: %w", err)
		}

		record.TemplateType = models.TemplateType(templateType)
		record.Status = models.ChangeStatus(status)
		record.Error = errText.String
		if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			record.RecordedAt = t
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push records: %w", err)
	}
	return records, nil
}

// LastDigest returns the digest of the latest successful push of alias to
// host, or "" when the alias was never pushed there.
func (r *PushRepository) LastDigest(ctx context.Context, host, alias string) (string, error) {
	var digest string
	err := r.db.QueryRowContext(ctx, `
		SELECT rec.digest FROM push_records rec
		JOIN push_runs run ON run.id = rec.run_id
		WHERE run.host = ? AND rec.alias = ? AND rec.error IS NULL
		ORDER BY rec.recorded_at DESC, rec.rowid DESC
		LIMIT 1
	`, host, alias).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query digest: %w", err)
	}
	return digest, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.PushRun, error) {
	var (
		run        models.PushRun
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.Directory,
		&run.Host,
		&startedAt,
		&finishedAt,
		&run.Total,
		&run.Failed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan push run: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		run.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}
