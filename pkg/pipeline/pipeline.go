// Package pipeline runs the coverbot steps in order: trigger filter, test
// runner, report check and, for pull requests, the coverage comment.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/holon-run/coverbot/pkg/actions"
	"github.com/holon-run/coverbot/pkg/comment"
	"github.com/holon-run/coverbot/pkg/config"
	"github.com/holon-run/coverbot/pkg/coverage"
	cblog "github.com/holon-run/coverbot/pkg/log"
	"github.com/holon-run/coverbot/pkg/publisher"
	"github.com/holon-run/coverbot/pkg/report"
	"github.com/holon-run/coverbot/pkg/runner"
	"github.com/holon-run/coverbot/pkg/trigger"
)

// Options are the collaborators of one run.
type Options struct {
	Config  config.Config
	Context *actions.Context
	Runner  runner.Runner
	// Publisher may be nil, in which case the comment is only logged.
	Publisher publisher.Publisher
	// StepSummary receives the comment body when set.
	StepSummary func(markdown string)
}

// Outcome records what a run did. Failures are the fatal, user-visible errors.
type Outcome struct {
	Skipped   bool
	Failures  []error
	Body      string
	Posted    bool
	CommentID int64
}

// Failed reports whether the step must exit non-zero.
func (o *Outcome) Failed() bool {
	return len(o.Failures) > 0
}

func (o *Outcome) fail(err error) {
	cblog.Error("step failed", "error", err)
	o.Failures = append(o.Failures, err)
}

// Run executes one pass. It only returns an error for invalid options; test
// and report failures are recorded on the Outcome.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	if opts.Context == nil || opts.Runner == nil {
		return nil, fmt.Errorf("pipeline needs an actions context and a runner")
	}
	cfg, gh := opts.Config, opts.Context
	out := &Outcome{}

	if trigger.ShouldSkip(cfg.SkipOn, gh.Labels()) {
		cblog.Progress("skip label present, nothing to do", "label", cfg.SkipOn)
		out.Skipped = true
		return out, nil
	}

	inv, err := runner.BuildInvocation(cfg.RunnerLauncher(), cfg.Jest, gh.Workdir)
	if err != nil {
		out.fail(err)
		inv = runner.Invocation{Dir: gh.Workdir, ReportPath: runner.ReportPath(gh.Workdir)}
	} else if err := opts.Runner.Run(ctx, inv); err != nil {
		// the report may still have been written; keep going
		out.fail(err)
	}

	rep, err := report.Load(inv.ReportPath)
	if err != nil {
		out.fail(err)
		return out, nil
	}
	cblog.Info("test report loaded",
		"success", rep.Success,
		"tests", rep.NumTotalTests,
		"passed", rep.NumPassedTests,
		"failed", rep.NumFailedTests,
		"pending", rep.NumPendingTests,
		"suites", rep.NumTotalTestSuites,
		"files", len(rep.CoverageMap),
	)

	if err := rep.Check(); err != nil {
		out.fail(err)
		return out, nil
	}

	if !gh.IsPullRequest() {
		cblog.Info("not a pull request, no comment", "event", gh.EventName)
		return out, nil
	}

	rows, err := coverage.Summarize(rep.CoverageMap, gh.Workdir)
	if errors.Is(err, coverage.ErrNoEntries) {
		cblog.Error("No entries found in coverage data")
		return out, nil
	}
	if err != nil {
		cblog.Error("failed to summarize coverage", "error", err)
		return out, nil
	}

	out.Body = comment.Body(cfg.Scope, rows)
	cblog.Debug("comment body", "body", out.Body)

	if opts.StepSummary != nil {
		opts.StepSummary(out.Body)
	}

	publish(ctx, opts.Publisher, gh, out)
	return out, nil
}

// publish posts the body; every failure here is logged and never fatal.
func publish(ctx context.Context, p publisher.Publisher, gh *actions.Context, out *Outcome) {
	if p == nil {
		cblog.Warn("no publisher configured, comment not posted")
		return
	}

	owner, repo, err := publisher.ParseRepository(gh.FullName())
	if err != nil {
		cblog.Warn("cannot address coverage comment", "error", err)
		return
	}
	payload := publisher.CommentPayload{
		Owner:       owner,
		Repo:        repo,
		IssueNumber: gh.PullRequestNumber(),
		Body:        out.Body,
	}

	id, err := p.CreateComment(ctx, payload)
	if err != nil {
		cblog.Warn("failed to post coverage comment", "target", payload.Target(), "error", err)
		return
	}
	out.Posted = true
	out.CommentID = id
}
