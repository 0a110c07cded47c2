// Package report loads and checks the jest JSON report.
package report

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/holon-run/coverbot/pkg/coverage"
)

const schemaURL = "report.schema.json"

//go:embed schema.json
var schemaJSON string

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(schemaURL, schemaJSON)
})

// Status is a test file result status.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// TestResult is the outcome of one test file.
type TestResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Report is the subset of the jest --json output coverbot reads.
type Report struct {
	Success            bool         `json:"success"`
	NumTotalTests      int          `json:"numTotalTests"`
	NumPassedTests     int          `json:"numPassedTests"`
	NumFailedTests     int          `json:"numFailedTests"`
	NumPendingTests    int          `json:"numPendingTests"`
	NumTotalTestSuites int          `json:"numTotalTestSuites"`
	TestResults        []TestResult `json:"testResults"`
	CoverageMap        coverage.Map `json:"coverageMap"`
}

// LoadError reports a report that is missing, unreadable or not JSON.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load report %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SchemaError reports a JSON document that is not a jest report.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("report %s is not a valid jest JSON report: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// TestFailureError carries the messages of every failed test file.
type TestFailureError struct {
	Messages []string
}

func (e *TestFailureError) Error() string {
	return strings.Join(append([]string{"Some tests failed."}, e.Messages...), "\n\n")
}

// Load reads, validates and decodes the report at path.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse validates and decodes report data; path is only used in errors.
func Parse(path string, data []byte) (*Report, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("malformed JSON: %w", err)}
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile report schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &r, nil
}

// FailureMessages returns the messages of failed test files in report order.
func (r *Report) FailureMessages() []string {
	return lo.FilterMap(r.TestResults, func(tr TestResult, _ int) (string, bool) {
		return tr.Message, tr.Status == StatusFailed
	})
}

// Check returns a *TestFailureError when the run was not successful.
func (r *Report) Check() error {
	if r.Success {
		return nil
	}
	return &TestFailureError{Messages: r.FailureMessages()}
}
