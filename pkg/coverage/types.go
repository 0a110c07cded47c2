// Package coverage turns the istanbul coverage map from a jest report into
// per-file summary rows.
package coverage

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ErrNoEntries is returned when the coverage map has no files.
var ErrNoEntries = errors.New("no entries found in coverage data")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Position is a source location inside a file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range spans a statement, function or branch location.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// FileCoverage is the istanbul coverage data for one file. Only the fields
// needed for summaries are decoded; fnMap and branchMap are skipped.
type FileCoverage struct {
	Path         string           `json:"path"`
	StatementMap map[string]Range `json:"statementMap"`
	S            map[string]int   `json:"s"`
	F            map[string]int   `json:"f"`
	B            map[string][]int `json:"b"`
}

// wrappedFile accepts both the plain form and the older {"data": {...}} form.
type wrappedFile struct {
	Data *FileCoverage `json:"data"`
	FileCoverage
}

func (w wrappedFile) unwrap() FileCoverage {
	if w.Data != nil {
		return *w.Data
	}
	return w.FileCoverage
}

// Entry is one coverage map key with its file data.
type Entry struct {
	Key  string
	File FileCoverage
}

// Map is a coverage map that keeps the key order of the source document.
type Map []Entry

// UnmarshalJSON streams the object keys so that document order survives.
// A repeated key keeps its first position and takes the last value.
func (m *Map) UnmarshalJSON(data []byte) error {
	iter := jsoniter.ParseBytes(json, data)

	var out Map
	index := make(map[string]int)
	iter.ReadMapCB(func(it *jsoniter.Iterator, key string) bool {
		var w wrappedFile
		it.ReadVal(&w)
		if it.Error != nil {
			return false
		}
		if i, ok := index[key]; ok {
			out[i].File = w.unwrap()
			return true
		}
		index[key] = len(out)
		out = append(out, Entry{Key: key, File: w.unwrap()})
		return true
	})
	if iter.Error != nil {
		return fmt.Errorf("failed to decode coverage map: %w", iter.Error)
	}

	*m = out
	return nil
}

// Keys returns the file keys in document order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}
