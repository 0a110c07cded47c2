package comment

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/samber/lo"

	"github.com/holon-run/coverbot/pkg/coverage"
)

// Header is the first row of the coverage table.
var Header = []string{"Filename", "Statements", "Branches", "Functions", "Lines"}

var columnAlign = []Align{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight}

// Title is the bold first line of the comment.
func Title(scope string) string {
	title := ":robot: **Code coverage**"
	if scope != "" {
		title += " (" + scope + ")"
	}
	return title
}

// CoverageTable lays out one row per file under Header.
func CoverageTable(rows []coverage.Row) Table {
	return Table{
		Header: Header,
		Rows: lo.Map(rows, func(r coverage.Row, _ int) []string {
			return append([]string{r.Filename}, r.Cells()...)
		}),
		Align: columnAlign,
	}
}

// Body is the full comment text: title, blank line, table.
func Body(scope string, rows []coverage.Row) string {
	return Title(scope) + "\n\n" + CoverageTable(rows).Render()
}

// SplitBody separates a body into its title line and table.
func SplitBody(body string) (string, Table, error) {
	title, table, ok := strings.Cut(body, "\n\n")
	if !ok {
		return "", Table{}, fmt.Errorf("comment body has no table")
	}
	t, err := Parse(table)
	return title, t, err
}

// Preview renders a body for a terminal. style is a glamour standard style
// name, or "auto" to follow the terminal background.
func Preview(body, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithEmoji(),
		glamour.WithWordWrap(width),
	}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(body)
	if err != nil {
		return "", fmt.Errorf("failed to render comment preview: %w", err)
	}
	return out, nil
}
