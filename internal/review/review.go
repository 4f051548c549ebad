// Package review renders a change-set for the user to confirm.
package review

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/opencode-ai/pmsync/internal/models"
)

const (
	noneLabel = "None"
	// DefaultMaxCellWidth bounds the name and alias columns.
	DefaultMaxCellWidth = 48
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithNoColor disables colour output.
func WithNoColor(noColor bool) Option {
	return func(r *Renderer) {
		r.noColor = noColor
	}
}

// WithPalette selects the colour palette.
func WithPalette(palette Palette) Option {
	return func(r *Renderer) {
		r.palette = palette
	}
}

// WithMaxCellWidth truncates name and alias cells to width columns. Zero
// disables truncation.
func WithMaxCellWidth(width int) Option {
	return func(r *Renderer) {
		r.maxWidth = width
	}
}

// Renderer writes review tables to a writer.
type Renderer struct {
	out      io.Writer
	noColor  bool
	palette  Palette
	maxWidth int
	styles   Styles
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		out:      w,
		palette:  DefaultPalette,
		maxWidth: DefaultMaxCellWidth,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.styles = BuildStyles(newRenderer(w, r.noColor), r.palette)
	return r
}

// Styles returns the styles bound to the renderer's output.
func (r *Renderer) Styles() Styles {
	return r.styles
}

// Render writes the templates table, the layouts table and the summary line.
// Empty tables are omitted.
func (r *Renderer) Render(changes models.ChangeSet) error {
	var b strings.Builder

	templates := changes.Standards()
	if len(templates) > 0 {
		rows := make([][]string, 0, len(templates))
		for _, item := range templates {
			rows = append(rows, []string{
				r.statusLabel(item.Status),
				r.truncate(item.Template.Name),
				r.truncate(item.Template.Alias),
				r.LayoutUsedLabel(item),
			})
		}
		r.writeTable(&b, Count(len(templates), "template"), []string{"Change", "Name", "Alias", "Layout used"}, rows)
	}

	layouts := changes.Layouts()
	if len(layouts) > 0 {
		rows := make([][]string, 0, len(layouts))
		for _, item := range layouts {
			rows = append(rows, []string{
				r.statusLabel(item.Status),
				r.truncate(item.Template.Name),
				r.truncate(item.Template.Alias),
			})
		}
		r.writeTable(&b, Count(len(layouts), "layout"), []string{"Change", "Name", "Alias"}, rows)
	}

	b.WriteString("\n")
	b.WriteString(r.styles.Title.Render(Summary(len(templates), len(layouts))))
	b.WriteString("\n")

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Renderer) writeTable(b *strings.Builder, title string, headers []string, rows [][]string) {
	styled := make([]string, len(headers))
	for i, header := range headers {
		styled[i] = r.styles.Header.Render(header)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.styles.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(styled...).
		Rows(rows...)

	fmt.Fprintf(b, "\n%s\n%s\n", r.styles.Title.Render(title), t.Render())
}

func (r *Renderer) statusLabel(status models.ChangeStatus) string {
	switch status {
	case models.ChangeStatusAdded:
		return r.styles.Added.Render(string(status))
	case models.ChangeStatusModified:
		return r.styles.Modified.Render(string(status))
	default:
		return r.styles.Muted.Render(string(status))
	}
}

// LayoutUsedLabel shows the local layout reference. When the push changes
// the layout, the layout currently deployed is appended.
func (r *Renderer) LayoutUsedLabel(item models.ChangeItem) string {
	local := item.Template.LayoutTemplate()

	label := r.styles.Muted.Render(noneLabel)
	if local != "" {
		label = local
	}

	if item.Remote != nil && item.Diff.Has(models.DiffFieldLayout) {
		remote := item.Remote.LayoutTemplate()
		if remote == "" {
			remote = noneLabel
		}
		label += r.styles.Error.Render("  ✘ " + remote)
	}
	return label
}

func (r *Renderer) truncate(value string) string {
	if r.maxWidth <= 0 {
		return value
	}
	return runewidth.Truncate(value, r.maxWidth, "…")
}

// Count formats "1 template", "2 templates", "0 templates".
func Count(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Summary formats the line printed under the review tables.
func Summary(templates, layouts int) string {
	var parts []string
	if templates > 0 {
		parts = append(parts, Count(templates, "template"))
	}
	if layouts > 0 {
		parts = append(parts, Count(layouts, "layout"))
	}
	if len(parts) == 0 {
		return "Nothing will be pushed."
	}
	return strings.Join(parts, " and ") + " will be pushed."
}
