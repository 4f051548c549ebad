package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/opencode-ai/pmsync/internal/db"
	"github.com/opencode-ai/pmsync/internal/events"
	"github.com/opencode-ai/pmsync/internal/logging"
	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/opencode-ai/pmsync/internal/postmark"
	"github.com/opencode-ai/pmsync/internal/templatesync"
	"github.com/spf13/cobra"
)

var (
	pushForce  bool
	pushAll    bool
	pushDryRun bool
)

func init() {
	templatesCmd.AddCommand(templatesPushCmd)

	templatesPushCmd.Flags().BoolVarP(&pushForce, "force", "f", false, "disable confirmation before pushing templates")
	templatesPushCmd.Flags().BoolVarP(&pushAll, "all", "a", false, "push all local templates, including unchanged ones")
	templatesPushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "show the review and exit without pushing")
}

var templatesPushCmd = &cobra.Command{
	Use:   "push <templates directory>",
	Short: "Push templates from a directory to a Postmark server",
	Long: `Compare the templates in a local directory with the ones on the server
and push what changed. Layouts are pushed before templates.

A review of the changes is shown first and must be confirmed unless --force
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPush(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// PushReport is the structured output of a push.
type PushReport struct {
	Directory string                      `json:"directory" yaml:"directory"`
	Changes   models.ChangeSet            `json:"changes" yaml:"changes"`
	Result    *templatesync.PushResult    `json:"result,omitempty" yaml:"result,omitempty"`
	Failed    []templatesync.FetchFailure `json:"fetch_failures,omitempty" yaml:"fetch_failures,omitempty"`
	Drifted   []string                    `json:"drifted,omitempty" yaml:"drifted,omitempty"`
	RunID     string                      `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

func runPush(ctx context.Context, dir string, out, errOut io.Writer) error {
	local, err := buildManifest(dir, errOut)
	if err != nil {
		return err
	}
	if len(local.Templates) == 0 {
		return &PreflightError{
			Message: fmt.Sprintf("no templates or layouts were found in %s", dir),
			Hint:    "Each template folder needs a meta.json file",
		}
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

	changes := templatesync.Reconcile(catalog.Templates, local.Templates, pushAll)
	report := PushReport{Directory: dir, Changes: templatesync.PushOrder(changes), Failed: catalog.Failed}

	journal := openPushJournal(ctx)
	defer journal.Close()
	for _, item := range journal.Drifted(client.Host(), changes) {
		report.Drifted = append(report.Drifted, item.Template.Alias)
	}

	if len(changes) == 0 {
		if IsStructuredOutput() {
			return WriteOutput(out, report)
		}
		fmt.Fprintln(out, "There are no changes to push.")
		return nil
	}

	renderer := newReviewRenderer(out)
	if !IsStructuredOutput() {
		if err := renderer.Render(changes); err != nil {
			return err
		}
		if len(report.Drifted) > 0 {
			fmt.Fprintln(errOut, renderer.Styles().Error.Render(
				"These templates were changed on the server since they were last pushed from here and will be overwritten:"))
			for _, alias := range report.Drifted {
				fmt.Fprintf(errOut, "  %s\n", alias)
			}
		}
	}
	if pushDryRun {
		if IsStructuredOutput() {
			return WriteOutput(out, report)
		}
		return nil
	}

	ok, err := confirmOrFail("Would you like to continue?", pushForce)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(errOut, "Canceled.")
		return nil
	}

	journal.Start(dir, client.Host(), len(changes))

	styles := renderer.Styles()
	result, err := templatesync.Push(ctx, client, changes, templatesync.PushHooks{
		BeforeEach: func(index, total int, item models.ChangeItem) {
			if progressEnabled() {
				fmt.Fprintf(errOut, "[%d/%d] Pushing %s %s\n", index+1, total, item.Template.Type().Label(), item.Template.DisplayName())
			}
		},
		OnSuccess: func(item models.ChangeItem, _ *postmark.TemplateResult) {
			journal.Record(item, nil)
		},
		OnError: func(item models.ChangeItem, pushErr error) {
			journal.Record(item, pushErr)
			fmt.Fprintln(errOut, styles.Error.Render(fmt.Sprintf("%s: %v", item.Template.DisplayName(), pushErr)))
		},
		OnComplete: func(failures int) {
			journal.Finish(failures)
			if IsStructuredOutput() {
				return
			}
			if failures == 0 {
				fmt.Fprintln(out, styles.Success.Render("All finished!"))
				return
			}
			fmt.Fprintln(out, styles.Error.Render(fmt.Sprintf(
				"Failed to push %d %s. Please see the output above for more details.",
				failures, pluralize(failures, "template", "templates"))))
		},
	})
	if err != nil {
		return err
	}

	if IsStructuredOutput() {
		report.Result = result
		report.RunID = journal.RunID()
		return WriteOutput(out, report)
	}
	return nil
}

// pushJournal writes push outcomes to the history database. Journal errors
// are logged and never fail the push.
type pushJournal struct {
	ctx      context.Context
	database *db.DB
	repo     *db.PushRepository
	run      *models.PushRun
}

func openPushJournal(ctx context.Context) *pushJournal {
	j := &pushJournal{ctx: ctx}

	database, err := openHistory(ctx)
	if err != nil {
		logger := logging.Component("history")
		logger.Warn().Err(err).Msg("push history disabled")
		return j
	}
	if database == nil {
		return j
	}

	j.database = database
	j.repo = db.NewPushRepository(database)
	return j
}

// Drifted reports the items whose server copy changed since they were last
// pushed from here. It never affects what gets pushed.
func (j *pushJournal) Drifted(host string, changes models.ChangeSet) []models.ChangeItem {
	if j.repo == nil {
		return nil
	}
	drifted, err := events.Drifted(j.ctx, j.repo, host, changes)
	if err != nil {
		logger := logging.Component("history")
		logger.Warn().Err(err).Msg("failed to compare with push history")
		return nil
	}
	return drifted
}

func (j *pushJournal) Start(dir, host string, total int) {
	if j.repo == nil {
		return
	}
	run, err := events.LogRunStarted(j.ctx, j.repo, dir, host, total)
	if err != nil {
		logger := logging.Component("history")
		logger.Warn().Err(err).Msg("failed to record push run")
		return
	}
	j.run = run
}

func (j *pushJournal) Record(item models.ChangeItem, pushErr error) {
	if j.run == nil {
		return
	}
	if err := events.LogItemPushed(j.ctx, j.repo, j.run.ID, item, pushErr); err != nil {
		logger := logging.Component("history")
		logger.Warn().Err(err).Str("alias", item.Template.Alias).Msg("failed to record push")
	}
}

func (j *pushJournal) Finish(failures int) {
	if j.run == nil {
		return
	}
	if err := events.LogRunFinished(j.ctx, j.repo, j.run, failures); err != nil {
		logger := logging.Component("history")
		logger.Warn().Err(err).Msg("failed to finish push run")
	}
}

func (j *pushJournal) RunID() string {
	if j.run == nil {
		return ""
	}
	return j.run.ID
}

func (j *pushJournal) Close() {
	if j.database != nil {
		j.database.Close()
	}
}
