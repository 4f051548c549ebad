package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/opencode-ai/pmsync/internal/manifest"
	"github.com/opencode-ai/pmsync/internal/review"
	"github.com/opencode-ai/pmsync/internal/templatesync"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(templatesCmd)
}

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"template", "tpl"},
	Short:   "Manage templates on a Postmark server",
	Long:    "Push local templates to a Postmark server, pull them into a directory, or delete them.",
}

func newReviewRenderer(out io.Writer) *review.Renderer {
	return review.New(out, review.WithNoColor(colorDisabled()))
}

// buildManifest reads dir and reports skipped folders on errOut.
func buildManifest(dir string, errOut io.Writer) (*manifest.Result, error) {
	result, err := manifest.Build(dir)
	if err != nil {
		switch {
		case errors.Is(err, manifest.ErrDirectoryNotFound):
			return nil, &PreflightError{
				Message: fmt.Sprintf("the provided path %q does not exist", dir),
				Hint:    "Pass the directory that holds your template folders",
			}
		case errors.Is(err, manifest.ErrNotADirectory):
			return nil, &PreflightError{
				Message: fmt.Sprintf("the provided path %q is not a directory", dir),
				Hint:    "Pass the directory that holds your template folders",
			}
		}
		return nil, err
	}

	for _, skipped := range result.Skipped {
		fmt.Fprintf(errOut, "Skipping %s: %s\n", skipped.Path, skipped.Reason)
	}
	return result, nil
}

func reportFetchFailures(errOut io.Writer, failed []templatesync.FetchFailure) {
	for _, failure := range failed {
		fmt.Fprintf(errOut, "Could not fetch %s (%s): %s\n", failure.IDOrAlias, failure.Name, failure.Error)
	}
}
