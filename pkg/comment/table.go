// Package comment renders coverage rows into the markdown body of the PR comment.
package comment

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Align is a column alignment in a GFM table.
type Align int

const (
	AlignNone Align = iota
	AlignLeft
	AlignRight
	AlignCenter
)

// Table is a GFM pipe table.
type Table struct {
	Header []string
	Rows   [][]string
	Align  []Align
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func unescapeCell(s string) string {
	return strings.ReplaceAll(s, `\|`, "|")
}

func (t Table) columns() int {
	n := len(t.Header)
	for _, row := range t.Rows {
		n = max(n, len(row))
	}
	return n
}

func (t Table) align(col int) Align {
	if col < len(t.Align) {
		return t.Align[col]
	}
	return AlignNone
}

func delimiter(a Align, width int) string {
	var before, after string
	switch a {
	case AlignLeft:
		before = ":"
	case AlignRight:
		after = ":"
	case AlignCenter:
		before, after = ":", ":"
	}
	dashes := max(1, width-len(before)-len(after))
	return before + strings.Repeat("-", dashes) + after
}

func pad(cell string, a Align, width int) string {
	gap := width - runewidth.StringWidth(cell)
	if gap <= 0 {
		return cell
	}
	switch a {
	case AlignRight:
		return strings.Repeat(" ", gap) + cell
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + cell + strings.Repeat(" ", gap-left)
	default:
		return cell + strings.Repeat(" ", gap)
	}
}

// Render writes the table with every column padded to its widest cell.
func (t Table) Render() string {
	cols := t.columns()
	lines := make([][]string, 0, len(t.Rows)+1)
	for _, row := range append([][]string{t.Header}, t.Rows...) {
		cells := make([]string, cols)
		for i := range cells {
			if i < len(row) {
				cells[i] = escapeCell(row[i])
			}
		}
		lines = append(lines, cells)
	}

	widths := make([]int, cols)
	for _, cells := range lines {
		for i, c := range cells {
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}

	delims := make([]string, cols)
	for i := range delims {
		delims[i] = delimiter(t.align(i), widths[i])
		widths[i] = max(widths[i], len(delims[i]))
	}

	var b strings.Builder
	writeLine := func(cells []string, padded bool) {
		b.WriteString("|")
		for i, c := range cells {
			if padded {
				c = pad(c, t.align(i), widths[i])
			}
			b.WriteString(" " + c + " |")
		}
	}

	writeLine(lines[0], true)
	b.WriteString("\n")
	writeLine(delims, false)
	for _, cells := range lines[1:] {
		b.WriteString("\n")
		writeLine(cells, true)
	}
	return b.String()
}

// splitRow splits a table line on unescaped pipes.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}

	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteString(`\|`)
			i++
		case line[i] == '|':
			cells = append(cells, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	cells = append(cells, cur.String())

	for i, c := range cells {
		cells[i] = unescapeCell(strings.TrimSpace(c))
	}
	return cells
}

func parseAlign(cell string) (Align, error) {
	left := strings.HasPrefix(cell, ":")
	right := strings.HasSuffix(cell, ":")
	if strings.Trim(cell, ":") == "" || strings.Trim(cell, ":-") != "" {
		return AlignNone, fmt.Errorf("invalid delimiter cell %q", cell)
	}
	switch {
	case left && right:
		return AlignCenter, nil
	case left:
		return AlignLeft, nil
	case right:
		return AlignRight, nil
	default:
		return AlignNone, nil
	}
}

// Parse reads a table produced by Render back into its cells.
func Parse(s string) (Table, error) {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return Table{}, fmt.Errorf("table needs a header and a delimiter row, got %d lines", len(lines))
	}

	t := Table{Header: splitRow(lines[0])}
	for _, cell := range splitRow(lines[1]) {
		a, err := parseAlign(cell)
		if err != nil {
			return Table{}, err
		}
		t.Align = append(t.Align, a)
	}
	if len(t.Align) != len(t.Header) {
		return Table{}, fmt.Errorf("delimiter row has %d cells, header has %d", len(t.Align), len(t.Header))
	}
	for _, l := range lines[2:] {
		t.Rows = append(t.Rows, splitRow(l))
	}
	return t, nil
}
