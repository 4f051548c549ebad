package models

import "strings"

// ChangeStatus classifies a local record against the remote catalog.
type ChangeStatus string

const (
	ChangeStatusAdded      ChangeStatus = "Added"
	ChangeStatusModified   ChangeStatus = "Modified"
	ChangeStatusUnmodified ChangeStatus = "Unmodified"
)

// DiffField tags a field that differs between a local and a remote record.
type DiffField string

const (
	DiffFieldHTML    DiffField = "html"
	DiffFieldText    DiffField = "text"
	DiffFieldSubject DiffField = "subject"
	DiffFieldName    DiffField = "name"
	DiffFieldLayout  DiffField = "layout"
)

// DiffResult is the set of changed fields, kept in a fixed order.
type DiffResult []DiffField

// Has reports whether field is in the set.
func (d DiffResult) Has(field DiffField) bool {
	for _, f := range d {
		if f == field {
			return true
		}
	}
	return false
}

// Empty reports whether no meaningful difference was found.
func (d DiffResult) Empty() bool {
	return len(d) == 0
}

func (d DiffResult) String() string {
	parts := make([]string, len(d))
	for i, f := range d {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// ChangeItem is one entry of a change-set.
type ChangeItem struct {
	Template Template     `json:"template" yaml:"template"`
	Status   ChangeStatus `json:"status" yaml:"status"`
	New      bool         `json:"new" yaml:"new"`

	// Remote is the matched remote record; nil when Status is Added.
	Remote *Template  `json:"remote,omitempty" yaml:"remote,omitempty"`
	Diff   DiffResult `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// ChangeSet is the ordered list of items a push acts on.
type ChangeSet []ChangeItem

// Layouts returns the layout items in change-set order.
func (c ChangeSet) Layouts() ChangeSet {
	return c.filter(func(item ChangeItem) bool { return item.Template.IsLayout() })
}

// Standards returns the standard template items in change-set order.
func (c ChangeSet) Standards() ChangeSet {
	return c.filter(func(item ChangeItem) bool { return !item.Template.IsLayout() })
}

// Count returns how many items carry status.
func (c ChangeSet) Count(status ChangeStatus) int {
	count := 0
	for _, item := range c {
		if item.Status == status {
			count++
		}
	}
	return count
}

func (c ChangeSet) filter(keep func(ChangeItem) bool) ChangeSet {
	out := make(ChangeSet, 0, len(c))
	for _, item := range c {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
