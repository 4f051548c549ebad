package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/opencode-ai/pmsync/internal/db"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRun   string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the items of one run")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent template pushes",
	Long:  "Show the pushes recorded in the local history journal, or the items of one push with --run.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		database, err := openHistory(ctx)
		if err != nil {
			return err
		}
		if database == nil {
			return &PreflightError{
				Message: "push history is disabled",
				Hint:    "Set history.enabled in the config file or unset --no-history",
			}
		}
		defer database.Close()

		repo := db.NewPushRepository(database)
		if historyRun != "" {
			return showRun(cmd, repo, historyRun, out)
		}

		runs, err := repo.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if IsStructuredOutput() {
			return WriteOutput(out, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No pushes recorded yet.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				shortID(run.ID),
				formatTime(&run.StartedAt),
				run.Directory,
				run.Host,
				strconv.Itoa(run.Total),
				strconv.Itoa(run.Failed),
			})
		}
		return writeTable(out, []string{"RUN", "STARTED", "DIRECTORY", "HOST", "ITEMS", "FAILED"}, rows)
	},
}

func showRun(cmd *cobra.Command, repo *db.PushRepository, runID string, out io.Writer) error {
	ctx := cmd.Context()

	run, err := repo.FindRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	records, err := repo.ListRecords(ctx, run.ID)
	if err != nil {
		return err
	}

	if IsStructuredOutput() {
		return WriteOutput(out, struct {
			Run     any `json:"run" yaml:"run"`
			Records any `json:"records" yaml:"records"`
		}{run, records})
	}

	fmt.Fprintf(out, "Run %s: %s to %s, started %s, finished %s\n\n",
		run.ID, run.Directory, run.Host, formatTime(&run.StartedAt), formatTime(run.FinishedAt))

	rows := make([][]string, 0, len(records))
	for i, record := range records {
		result := "ok"
		if !record.OK() {
			result = record.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			record.TemplateType.Label(),
			record.Alias,
			string(record.Status),
			shortID(record.Digest),
			result,
		})
	}
	return writeTable(out, []string{"#", "TYPE", "ALIAS", "CHANGE", "DIGEST", "RESULT"}, rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
