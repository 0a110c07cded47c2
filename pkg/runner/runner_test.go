package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cblog "github.com/holon-run/coverbot/pkg/log"
	"github.com/holon-run/coverbot/pkg/log/redact"
)

func TestExecRunnerSuccess(t *testing.T) {
	dir := t.TempDir()
	inv := Invocation{
		Dir:  dir,
		Args: []string{"sh", "-c", "echo '{}' > report.json"},
	}

	require.NoError(t, NewExecRunner().Run(context.Background(), inv))

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestExecRunnerRedactsOutput(t *testing.T) {
	var logs bytes.Buffer
	cblog.Init(cblog.Config{Level: cblog.LevelDebug, Output: &logs})
	t.Cleanup(cblog.Reset)
	t.Setenv("COVERBOT_TEST_SECRET", "tok-98765")

	inv := Invocation{
		Dir:  t.TempDir(),
		Args: []string{"sh", "-c", "echo NPM_TOKEN=abc$((12300+45)); echo using $COVERBOT_TEST_SECRET"},
	}
	r := &ExecRunner{Redactor: redact.New("tok-98765")}
	require.NoError(t, r.Run(context.Background(), inv))

	assert.Contains(t, logs.String(), "runner output")
	assert.Contains(t, logs.String(), "NPM_TOKEN=***")
	assert.NotContains(t, logs.String(), "abc12345")
	assert.NotContains(t, logs.String(), "tok-98765")
}

func TestExecRunnerExitCode(t *testing.T) {
	inv := Invocation{Dir: t.TempDir(), Args: []string{"sh", "-c", "echo failing >&2; exit 3"}}

	err := NewExecRunner().Run(context.Background(), inv)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, err.Error(), "failed with exit code 3")
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	inv := Invocation{Dir: t.TempDir(), Args: []string{"definitely-not-a-jest-binary"}}

	err := NewExecRunner().Run(context.Background(), inv)
	require.Error(t, err)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "definitely-not-a-jest-binary", spawnErr.Name)
	assert.Contains(t, err.Error(), "Unable to locate executable file")
}

func TestExecRunnerEmptyArgs(t *testing.T) {
	assert.Error(t, NewExecRunner().Run(context.Background(), Invocation{}))
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Path: "/usr/bin/npx", Code: 1}
	assert.Equal(t, "The process '/usr/bin/npx' failed with exit code 1", err.Error())
}

func TestContainerRunnerBuildSpec(t *testing.T) {
	r := &ContainerRunner{Image: "node:20", Env: []string{"CI=true"}}
	inv := Invocation{
		Dir:  "/home/runner/work/app",
		Args: []string{"npx", "jest", "--", "--json"},
	}

	spec := r.BuildSpec(inv)

	assert.Equal(t, "node:20", spec.Config.Image)
	assert.Equal(t, []string(inv.Args), []string(spec.Config.Cmd))
	assert.Equal(t, inv.Dir, spec.Config.WorkingDir)
	assert.Equal(t, []string{"CI=true"}, spec.Config.Env)
	assert.NotEmpty(t, spec.Config.User)

	require.Len(t, spec.Host.Mounts, 1)
	m := spec.Host.Mounts[0]
	assert.Equal(t, mount.TypeBind, m.Type)
	assert.Equal(t, inv.Dir, m.Source)
	assert.Equal(t, inv.Dir, m.Target)
}
