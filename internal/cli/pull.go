package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/opencode-ai/pmsync/internal/manifest"
	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/opencode-ai/pmsync/internal/templatesync"
	"github.com/spf13/cobra"
)

var pullOverwrite bool

func init() {
	templatesCmd.AddCommand(templatesPullCmd)

	templatesPullCmd.Flags().BoolVarP(&pullOverwrite, "overwrite", "o", false, "overwrite existing files in the output directory")
}

var templatesPullCmd = &cobra.Command{
	Use:   "pull <output directory>",
	Short: "Pull templates from a Postmark server into a directory",
	Long: `Download every template and layout from the server. Each one is saved in
its own folder named after its alias; layouts go under _layouts. Templates
without an alias are not downloaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPull(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// PullReport is the structured output of a pull.
type PullReport struct {
	Directory string                      `json:"directory" yaml:"directory"`
	Saved     []string                    `json:"saved" yaml:"saved"`
	NoAlias   []string                    `json:"no_alias,omitempty" yaml:"no_alias,omitempty"`
	Failed    []templatesync.FetchFailure `json:"fetch_failures,omitempty" yaml:"fetch_failures,omitempty"`
}

func runPull(ctx context.Context, dir string, out, errOut io.Writer) error {
	ok, err := checkPullDirectory(dir)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(errOut, "Canceled.")
		return nil
	}

	client, err := newClient(errOut)
	if err != nil {
		return err
	}

	step := startProgress(errOut, "Fetching templates from Postmark")
	catalog, err := templatesync.NewFetcher(client, templatesync.WithPageSize(GetConfig().PageSize)).Fetch(ctx)
	if err != nil {
		step.Fail(err)
		return err
	}
	step.Done()
	reportFetchFailures(errOut, catalog.Failed)

	if catalog.TotalCount == 0 {
		return &PreflightError{Message: "There are no templates on this server."}
	}

	withAlias := make([]models.Template, 0, len(catalog.Templates))
	var noAlias []string
	for _, template := range catalog.Templates {
		if template.Alias == "" {
			noAlias = append(noAlias, template.Name)
			continue
		}
		withAlias = append(withAlias, template)
	}
	if len(noAlias) > 0 && !IsStructuredOutput() {
		fmt.Fprintln(errOut, "Templates with the following names will not be downloaded because they are missing an alias:")
		for _, name := range noAlias {
			fmt.Fprintf(errOut, "  %s\n", name)
		}
	}

	step = startProgress(errOut, fmt.Sprintf("Saving templates to %s", dir))
	written, err := manifest.Write(dir, withAlias)
	if err != nil {
		step.Fail(err)
		return err
	}
	step.Done()

	if IsStructuredOutput() {
		return WriteOutput(out, PullReport{
			Directory: dir,
			Saved:     written.Written,
			NoAlias:   noAlias,
			Failed:    catalog.Failed,
		})
	}

	saved := len(written.Written)
	styles := newReviewRenderer(out).Styles()
	fmt.Fprintln(out, styles.Success.Render(fmt.Sprintf("All finished! %d %s been saved to %s.",
		saved, pluralize(saved, "template has", "templates have"), dir)))
	return nil
}

// checkPullDirectory asks before writing into a non-empty directory.
func checkPullDirectory(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if len(entries) == 0 || pullOverwrite {
		return true, nil
	}

	if IsNonInteractive() {
		return false, &PreflightError{
			Message:  fmt.Sprintf("%s is not empty", dir),
			Hint:     "Pass --overwrite to replace existing files",
			NextStep: fmt.Sprintf("pmsync templates pull %s --overwrite", dir),
		}
	}
	return confirmPrompt(fmt.Sprintf("Overwrite the existing files in %s?", dir))
}
