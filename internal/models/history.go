package models

import "time"

// PushRun is one invocation of a template push, as kept in the journal.
type PushRun struct {
	// ID is the unique identifier for the run.
	ID string `json:"id"`

	// Directory is the local template directory that was pushed.
	Directory string `json:"directory"`

	// Host is the remote API host the run targeted.
	Host string `json:"host"`

	// StartedAt is when the first item was attempted.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is set once every item has been attempted.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Total is the number of change-set items.
	Total int `json:"total"`

	// Failed is the number of items whose push returned an error.
	Failed int `json:"failed"`
}

// Succeeded returns the number of items pushed without error.
func (r *PushRun) Succeeded() int {
	return r.Total - r.Failed
}

// PushRecord is the outcome of pushing one change-set item.
type PushRecord struct {
	ID           string       `json:"id"`
	RunID        string       `json:"run_id"`
	Alias        string       `json:"alias"`
	Name         string       `json:"name"`
	TemplateType TemplateType `json:"template_type"`
	Status       ChangeStatus `json:"status"`

	// Digest fingerprints the pushed content so later runs can be compared.
	Digest string `json:"digest"`

	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// OK reports whether the item was pushed successfully.
func (r *PushRecord) OK() bool {
	return r.Error == ""
}
