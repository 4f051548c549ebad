package templatesync

import "github.com/opencode-ai/pmsync/internal/models"

// Reconcile classifies every local record against the remote catalog.
//
// Records are matched by alias; the first remote record with the alias wins.
// Unmatched records are Added, matched records with a non-empty diff are
// Modified. Unmodified records are only kept when pushAll is set. The result
// follows manifest order.
func Reconcile(remote []models.Template, local []models.Template, pushAll bool) models.ChangeSet {
	index := make(map[string]int, len(remote))
	for i, template := range remote {
		if template.Alias == "" {
			continue
		}
		if _, exists := index[template.Alias]; !exists {
			index[template.Alias] = i
		}
	}

	changes := make(models.ChangeSet, 0, len(local))
	for _, template := range local {
		i, found := index[template.Alias]
		if !found || template.Alias == "" {
			changes = append(changes, models.ChangeItem{
				Template: template,
				Status:   models.ChangeStatusAdded,
				New:      true,
			})
			continue
		}

		match := remote[i]
		diff := Diff(match, template)
		status := models.ChangeStatusModified
		if diff.Empty() {
			if !pushAll {
				continue
			}
			status = models.ChangeStatusUnmodified
		}

		changes = append(changes, models.ChangeItem{
			Template: template,
			Status:   status,
			Remote:   &match,
			Diff:     diff,
		})
	}
	return changes
}
