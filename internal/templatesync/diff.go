// Package templatesync compares a local manifest with the remote catalog and
// pushes the difference.
package templatesync

import "github.com/opencode-ai/pmsync/internal/models"

// Diff returns the fields that differ between a remote record and its local
// counterpart. Empty strings stand for missing content, so a blank local body
// matches a null remote body. Subject and layout are only compared when the
// local record is a standard template.
func Diff(remote, local models.Template) models.DiffResult {
	var diff models.DiffResult

	if remote.HTMLBody != local.HTMLBody {
		diff = append(diff, models.DiffFieldHTML)
	}
	if remote.TextBody != local.TextBody {
		diff = append(diff, models.DiffFieldText)
	}
	if !local.IsLayout() && remote.Subject() != local.Subject() {
		diff = append(diff, models.DiffFieldSubject)
	}
	if remote.Name != local.Name {
		diff = append(diff, models.DiffFieldName)
	}
	if !local.IsLayout() && remote.LayoutTemplate() != local.LayoutTemplate() {
		diff = append(diff, models.DiffFieldLayout)
	}

	return diff
}
