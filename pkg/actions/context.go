// Package actions builds the execution context of a GitHub Actions step.
package actions

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/go-github/v68/github"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/sethvargo/go-githubactions"

	cblog "github.com/holon-run/coverbot/pkg/log"
)

// EventPullRequest is the only event that gets a coverage comment.
const EventPullRequest = "pull_request"

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Context is everything the pipeline needs from the environment, read once.
type Context struct {
	EventName  string
	Repository string
	APIURL     string
	Token      string
	// Workdir is where the runner executes and the report is written.
	Workdir string
	// Event is the decoded payload when it has a pull_request object, nil otherwise.
	Event *github.PullRequestEvent
}

// Load reads the step context through a. The event payload is kept whenever it
// carries a pull request, so pull_request_target runs still expose labels.
func Load(a *githubactions.Action, getenv func(string) string, workdir string) (*Context, error) {
	gh, err := a.Context()
	if err != nil {
		return nil, fmt.Errorf("failed to read actions context: %w", err)
	}

	c := &Context{
		EventName:  gh.EventName,
		Repository: gh.Repository,
		APIURL:     gh.APIURL,
		Token:      Token(getenv),
		Workdir:    workdir,
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}

	if gh.EventPath == "" {
		return c, nil
	}
	event, err := ReadPullRequestEvent(gh.EventPath)
	switch {
	case err != nil && c.IsPullRequest():
		return nil, err
	case err != nil:
		// other events only matter when they carry a pull request
		cblog.Debug("event payload has no pull request", "event", c.EventName, "error", err)
	case event.PullRequest != nil:
		c.Event = event
	}
	return c, nil
}

// Token returns GITHUB_TOKEN, falling back to GH_TOKEN.
func Token(getenv func(string) string) string {
	if t := strings.TrimSpace(getenv("GITHUB_TOKEN")); t != "" {
		return t
	}
	return strings.TrimSpace(getenv("GH_TOKEN"))
}

// ReadPullRequestEvent decodes the event payload file.
func ReadPullRequestEvent(path string) (*github.PullRequestEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event payload %s: %w", path, err)
	}
	var event github.PullRequestEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse event payload %s: %w", path, err)
	}
	return &event, nil
}

// IsPullRequest reports whether this is a pull_request run.
func (c *Context) IsPullRequest() bool {
	return c.EventName == EventPullRequest
}

// Labels returns the label names of the pull request, or nil outside one.
func (c *Context) Labels() []string {
	if c.Event == nil || c.Event.PullRequest == nil {
		return nil
	}
	return lo.Map(c.Event.PullRequest.Labels, func(l *github.Label, _ int) string {
		return l.GetName()
	})
}

// PullRequestNumber returns the PR number from the payload, 0 when unknown.
func (c *Context) PullRequestNumber() int {
	if c.Event == nil {
		return 0
	}
	if n := c.Event.GetNumber(); n != 0 {
		return n
	}
	return c.Event.GetPullRequest().GetNumber()
}

// FullName is the owner/repo of the run, preferring the event payload.
func (c *Context) FullName() string {
	if c.Event != nil {
		if name := c.Event.GetRepo().GetFullName(); name != "" {
			return name
		}
	}
	return c.Repository
}
