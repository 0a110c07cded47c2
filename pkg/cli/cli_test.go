package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holon-run/coverbot/pkg/comment"
)

func newRunTestCmd(t *testing.T, args ...string) (*cobra.Command, runFlags) {
	t.Helper()
	var opts runFlags
	cmd := &cobra.Command{Use: "run"}
	bindRunFlags(cmd, &opts)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, opts
}

func inputs(values map[string]string) func(string) string {
	return func(name string) string { return values[name] }
}

func TestResolveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := "jest: yarn test\nscope: from-file\nlauncher: yarn\nskip_on: file-label\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coverbot.yaml"), []byte(file), 0o644))

	cmd, opts := newRunTestCmd(t, "--scope", "from-flag")
	cfg, err := resolveConfig(cmd, opts, inputs(map[string]string{
		"scope":   "from-input",
		"skip_on": "input-label",
	}), dir)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Scope)
	assert.Equal(t, "input-label", cfg.SkipOn)
	assert.Equal(t, "yarn test", cfg.Jest)
	assert.Equal(t, "yarn", cfg.Launcher)
	assert.False(t, cfg.StepSummary)
}

func TestResolveConfigDefaults(t *testing.T) {
	cmd, opts := newRunTestCmd(t)
	cfg, err := resolveConfig(cmd, opts, inputs(nil), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "npx jest", cfg.Jest)
	assert.Equal(t, "npx", cfg.Launcher)
	assert.Empty(t, cfg.Scope)
}

func TestResolveConfigStepSummaryFlag(t *testing.T) {
	cmd, opts := newRunTestCmd(t, "--step_summary=false")
	cfg, err := resolveConfig(cmd, opts, inputs(map[string]string{"step_summary": "true"}), t.TempDir())
	require.NoError(t, err)
	assert.False(t, cfg.StepSummary)
}

func TestResolveConfigRejectsUnknownLauncher(t *testing.T) {
	cmd, opts := newRunTestCmd(t, "--launcher", "bun")
	_, err := resolveConfig(cmd, opts, inputs(nil), t.TempDir())
	assert.Error(t, err)
}

func TestResolveConfigExplicitFileMissing(t *testing.T) {
	cmd, opts := newRunTestCmd(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := resolveConfig(cmd, opts, inputs(nil), t.TempDir())
	assert.Error(t, err)
}

func renderFixture() renderFlags {
	return renderFlags{
		reportPath: filepath.Join("..", "report", "testdata", "passing.json"),
		cwd:        "/repo",
		style:      "notty",
		width:      80,
	}
}

func TestRenderReportPrintsBody(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	opts := renderFixture()
	opts.scope = "unit"
	require.NoError(t, renderReport(cmd, opts, inputs(nil)))

	title, table, err := comment.SplitBody(strings.TrimSuffix(out.String(), "\n"))
	require.NoError(t, err)
	assert.Equal(t, ":robot: **Code coverage** (unit)", title)
	assert.Equal(t, comment.Header, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"/src/b.js", "50%", "100%", "100%", "50%"}, table.Rows[0])
	assert.Equal(t, []string{"/src/a.js", "100%", "100%", "100%", "100%"}, table.Rows[1])
}

func TestRenderReportPreview(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	opts := renderFixture()
	opts.preview = true
	require.NoError(t, renderReport(cmd, opts, inputs(nil)))
	assert.Contains(t, out.String(), "Code coverage")
	assert.Contains(t, out.String(), "/src/a.js")
}

func TestRenderReportMissingFile(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	opts := renderFixture()
	opts.reportPath = filepath.Join(t.TempDir(), "report.json")
	assert.Error(t, renderReport(cmd, opts, inputs(nil)))
}

func TestRenderReportPostsToPullRequest(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		auth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 77, "body": "ok"}`))
	}))
	defer srv.Close()

	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	opts := renderFixture()
	opts.pr = "acme/widgets#42"
	env := inputs(map[string]string{
		"GITHUB_API_URL": srv.URL,
		"GITHUB_TOKEN":   "test-token",
	})
	require.NoError(t, renderReport(cmd, opts, env))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"POST /api/v3/repos/acme/widgets/issues/42/comments"}, paths)
	assert.Equal(t, "Bearer test-token", auth)
}

func TestRenderReportBadTarget(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	opts := renderFixture()
	opts.pr = "not a ref"
	assert.Error(t, renderReport(cmd, opts, inputs(nil)))
}
