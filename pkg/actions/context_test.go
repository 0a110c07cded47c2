package actions

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-githubactions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAction(env map[string]string) (*githubactions.Action, func(string) string) {
	getenv := func(key string) string { return env[key] }
	a := githubactions.New(
		githubactions.WithWriter(&bytes.Buffer{}),
		githubactions.WithGetenv(getenv),
	)
	return a, getenv
}

func TestLoadPullRequest(t *testing.T) {
	a, getenv := newAction(map[string]string{
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_EVENT_PATH": filepath.Join("testdata", "pull_request.json"),
		"GITHUB_REPOSITORY": "acme/widgets-fork",
		"GH_TOKEN":          "gh-token",
	})

	c, err := Load(a, getenv, "/repo")
	require.NoError(t, err)

	assert.True(t, c.IsPullRequest())
	assert.Equal(t, "/repo", c.Workdir)
	assert.Equal(t, "gh-token", c.Token)
	assert.Equal(t, DefaultAPIURL, c.APIURL)
	assert.Equal(t, 42, c.PullRequestNumber())
	assert.Equal(t, []string{"enhancement", "skip-coverage"}, c.Labels())
	assert.Equal(t, "acme/widgets", c.FullName())
}

func TestLoadPushEvent(t *testing.T) {
	a, getenv := newAction(map[string]string{
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_REPOSITORY": "acme/widgets",
		"GITHUB_API_URL":    "https://ghe.example.com/api/v3",
		"GITHUB_TOKEN":      "token",
	})

	c, err := Load(a, getenv, "/repo")
	require.NoError(t, err)

	assert.False(t, c.IsPullRequest())
	assert.Nil(t, c.Event)
	assert.Nil(t, c.Labels())
	assert.Zero(t, c.PullRequestNumber())
	assert.Equal(t, "acme/widgets", c.FullName())
	assert.Equal(t, "https://ghe.example.com/api/v3", c.APIURL)
}

func TestLoadPullRequestTargetKeepsLabels(t *testing.T) {
	a, getenv := newAction(map[string]string{
		"GITHUB_EVENT_NAME": "pull_request_target",
		"GITHUB_EVENT_PATH": filepath.Join("testdata", "pull_request.json"),
		"GITHUB_REPOSITORY": "acme/widgets",
	})

	c, err := Load(a, getenv, "/repo")
	require.NoError(t, err)

	assert.False(t, c.IsPullRequest())
	assert.Equal(t, []string{"enhancement", "skip-coverage"}, c.Labels())
	assert.Equal(t, 42, c.PullRequestNumber())
}

func TestLoadPushPayloadWithoutPullRequest(t *testing.T) {
	a, getenv := newAction(map[string]string{
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_EVENT_PATH": filepath.Join("testdata", "push.json"),
		"GITHUB_REPOSITORY": "acme/widgets",
	})

	c, err := Load(a, getenv, "/repo")
	require.NoError(t, err)

	assert.Nil(t, c.Event)
	assert.Nil(t, c.Labels())
}

func TestReadPullRequestEventErrors(t *testing.T) {
	_, err := ReadPullRequestEvent(filepath.Join(t.TempDir(), "event.json"))
	assert.Error(t, err)

	_, err = ReadPullRequestEvent(filepath.Join("testdata", "..", "context.go"))
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	env := map[string]string{"GITHUB_TOKEN": "primary", "GH_TOKEN": "fallback"}
	assert.Equal(t, "primary", Token(func(k string) string { return env[k] }))

	delete(env, "GITHUB_TOKEN")
	assert.Equal(t, "fallback", Token(func(k string) string { return env[k] }))

	delete(env, "GH_TOKEN")
	assert.Empty(t, Token(func(k string) string { return env[k] }))
}
