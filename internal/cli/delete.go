package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/opencode-ai/pmsync/internal/postmark"
	"github.com/opencode-ai/pmsync/internal/templatesync"
	"github.com/spf13/cobra"
)

var (
	deleteAllOfType string
	deleteForce     bool
)

func init() {
	templatesCmd.AddCommand(templatesDeleteCmd)

	templatesDeleteCmd.Flags().StringVar(&deleteAllOfType, "all-of-type", "", "delete every template of one type (standard, layout)")
	templatesDeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "disable confirmation before deleting")
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete [id-or-alias...]",
	Short: "Delete templates from a Postmark server",
	Long: `Delete the given templates, or every template of one type with
--all-of-type. Deletion cannot be undone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd.Context(), args, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// DeleteOutcome is one deleted template in structured output.
type DeleteOutcome struct {
	TemplateID int64  `json:"template_id" yaml:"template_id"`
	Name       string `json:"name" yaml:"name"`
	Alias      string `json:"alias,omitempty" yaml:"alias,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

type deleteTarget struct {
	id    int64
	name  string
	alias string
	kind  string
}

func (t deleteTarget) label() string {
	if t.alias != "" {
		return t.alias
	}
	return t.name
}

func runDelete(ctx context.Context, args []string, out, errOut io.Writer) error {
	filter, err := parseDeleteFilter(args)
	if err != nil {
		return err
	}

	client, err := newClient(errOut)
	if err != nil {
		return err
	}

	targets, lookupFailures, err := collectDeleteTargets(ctx, client, args, filter, errOut)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		if lookupFailures > 0 {
			return fmt.Errorf("none of the requested templates could be found")
		}
		return &PreflightError{Message: "There are no templates on this server."}
	}

	if !IsStructuredOutput() {
		rows := make([][]string, 0, len(targets))
		for _, target := range targets {
			rows = append(rows, []string{strconv.FormatInt(target.id, 10), target.name, target.alias, target.kind})
		}
		if err := writeTable(out, []string{"ID", "NAME", "ALIAS", "TYPE"}, rows); err != nil {
			return err
		}
	}

	question := fmt.Sprintf("Delete %d %s? This cannot be undone.", len(targets), pluralize(len(targets), "template", "templates"))
	ok, err := confirmOrFail(question, deleteForce)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(errOut, "Canceled.")
		return nil
	}

	outcomes := make([]DeleteOutcome, 0, len(targets))
	failures := 0
	for _, target := range targets {
		outcome := DeleteOutcome{TemplateID: target.id, Name: target.name, Alias: target.alias}
		if err := client.DeleteTemplate(ctx, strconv.FormatInt(target.id, 10)); err != nil {
			failures++
			outcome.Error = err.Error()
			fmt.Fprintf(errOut, "%s: %v\n", target.label(), err)
		} else if progressEnabled() {
			fmt.Fprintf(errOut, "Template %s removed.\n", target.label())
		}
		outcomes = append(outcomes, outcome)
	}

	if IsStructuredOutput() {
		return WriteOutput(out, outcomes)
	}

	styles := newReviewRenderer(out).Styles()
	deleted := len(targets) - failures
	if failures == 0 {
		fmt.Fprintln(out, styles.Success.Render(fmt.Sprintf("All finished! %d %s been deleted.",
			deleted, pluralize(deleted, "template has", "templates have"))))
		return nil
	}
	fmt.Fprintln(out, styles.Error.Render(fmt.Sprintf("Failed to delete %d %s. Please see the output above for more details.",
		failures, pluralize(failures, "template", "templates"))))
	return nil
}

func parseDeleteFilter(args []string) (postmark.TemplateTypeFilter, error) {
	value := strings.TrimSpace(deleteAllOfType)
	switch {
	case len(args) > 0 && value != "":
		return "", &PreflightError{Message: "pass either template ids/aliases or --all-of-type, not both"}
	case len(args) == 0 && value == "":
		return "", &PreflightError{
			Message:  "no templates selected",
			Hint:     "Pass template ids or aliases, or --all-of-type standard|layout",
			NextStep: "pmsync templates delete welcome-email",
		}
	case value == "":
		return "", nil
	}

	templateType, err := models.ParseTemplateType(value)
	if err != nil {
		return "", &PreflightError{Message: err.Error(), Hint: "Use --all-of-type standard or --all-of-type layout"}
	}
	if templateType == models.TemplateTypeLayout {
		return postmark.TemplateTypeLayout, nil
	}
	return postmark.TemplateTypeStandard, nil
}

func collectDeleteTargets(ctx context.Context, client *postmark.Client, args []string, filter postmark.TemplateTypeFilter, errOut io.Writer) ([]deleteTarget, int, error) {
	if len(args) == 0 {
		summaries, _, err := templatesync.NewFetcher(client,
			templatesync.WithPageSize(GetConfig().PageSize),
			templatesync.WithTemplateType(filter),
		).List(ctx)
		if err != nil {
			return nil, 0, err
		}

		targets := make([]deleteTarget, 0, len(summaries))
		for _, summary := range summaries {
			alias := ""
			if summary.Alias != nil {
				alias = *summary.Alias
			}
			targets = append(targets, deleteTarget{id: summary.TemplateID, name: summary.Name, alias: alias, kind: summary.TemplateType})
		}
		return targets, 0, nil
	}

	targets := make([]deleteTarget, 0, len(args))
	failures := 0
	for _, idOrAlias := range args {
		template, err := client.GetTemplate(ctx, idOrAlias)
		if err != nil {
			failures++
			fmt.Fprintf(errOut, "%s: %v\n", idOrAlias, err)
			continue
		}
		alias := ""
		if template.Alias != nil {
			alias = *template.Alias
		}
		targets = append(targets, deleteTarget{id: template.TemplateID, name: template.Name, alias: alias, kind: template.TemplateType})
	}
	return targets, failures, nil
}
