package coverage

import (
	"math"
	"strconv"
	"strings"
)

// Totals is one coverage metric for a file.
type Totals struct {
	Total   int
	Covered int
	Pct     float64
}

// Summary holds the four istanbul metrics for a file.
type Summary struct {
	Statements Totals
	Branches   Totals
	Functions  Totals
	Lines      Totals
}

// Percent truncates covered/total to two decimals. An empty metric is fully covered.
func Percent(covered, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Floor(float64(1000*100*covered)/float64(total)/10) / 100
}

func newTotals(covered, total int) Totals {
	return Totals{Total: total, Covered: covered, Pct: Percent(covered, total)}
}

func countHits(counts map[string]int) Totals {
	covered := 0
	for _, c := range counts {
		if c > 0 {
			covered++
		}
	}
	return newTotals(covered, len(counts))
}

// lineHits maps each line to the highest count of the statements starting on it.
// Counts without a statement location are ignored.
func (fc FileCoverage) lineHits() map[int]int {
	lines := make(map[int]int)
	for id, count := range fc.S {
		r, ok := fc.StatementMap[id]
		if !ok {
			continue
		}
		if prev, ok := lines[r.Start.Line]; !ok || prev < count {
			lines[r.Start.Line] = count
		}
	}
	return lines
}

// Summary computes statement, branch, function and line totals.
func (fc FileCoverage) Summary() Summary {
	var branchTotal, branchCovered int
	for _, hits := range fc.B {
		branchTotal += len(hits)
		for _, h := range hits {
			if h > 0 {
				branchCovered++
			}
		}
	}

	lineCovered := 0
	lines := fc.lineHits()
	for _, c := range lines {
		if c > 0 {
			lineCovered++
		}
	}

	return Summary{
		Statements: countHits(fc.S),
		Branches:   newTotals(branchCovered, branchTotal),
		Functions:  countHits(fc.F),
		Lines:      newTotals(lineCovered, len(lines)),
	}
}

// Row is one file's line in the coverage table.
type Row struct {
	Filename string
	Summary  Summary
}

// Summarize builds one row per entry, in map order. Filenames have the first
// occurrence of cwd removed.
func Summarize(m Map, cwd string) ([]Row, error) {
	if len(m) == 0 {
		return nil, ErrNoEntries
	}

	rows := make([]Row, 0, len(m))
	for _, e := range m {
		name := e.Key
		if cwd != "" {
			name = strings.Replace(name, cwd, "", 1)
		}
		rows = append(rows, Row{Filename: name, Summary: e.File.Summary()})
	}
	return rows, nil
}

// FormatPct renders a percentage with the shortest decimal form and a % suffix.
func FormatPct(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// Cells returns the four percent cells of a row in table order.
func (r Row) Cells() []string {
	return []string{
		FormatPct(r.Summary.Statements.Pct),
		FormatPct(r.Summary.Branches.Pct),
		FormatPct(r.Summary.Functions.Pct),
		FormatPct(r.Summary.Lines.Pct),
	}
}
