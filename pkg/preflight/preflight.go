// Package preflight checks the environment before the test runner starts.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	cblog "github.com/holon-run/coverbot/pkg/log"
)

// CheckLevel represents the severity level of a preflight check
type CheckLevel int

const (
	// LevelError indicates a critical failure that prevents execution
	LevelError CheckLevel = iota
	// LevelWarn indicates a problem that is reported but does not block execution
	LevelWarn
	// LevelInfo indicates informational output
	LevelInfo
)

// CheckResult represents the result of a single preflight check
type CheckResult struct {
	Name    string
	Level   CheckLevel
	Message string
	Error   error
}

// Check is a single preflight check
type Check interface {
	Name() string
	Run(ctx context.Context) CheckResult
}

// Pinger reaches the container daemon.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs a collection of preflight checks
type Checker struct {
	checks  []Check
	skipped bool
	quiet   bool
}

// Config configures the preflight checker
type Config struct {
	// Skip skips all preflight checks
	Skip bool
	// Quiet suppresses info-level messages
	Quiet bool
	// WorkspacePath is where the runner executes and writes the report
	WorkspacePath string
	// RunnerExecutable is looked up on PATH; empty when tests run in a container
	RunnerExecutable string
	// Docker is pinged when set
	Docker Pinger
	// RequireGitHubToken warns when Token is empty
	RequireGitHubToken bool
	Token              string
}

// NewChecker creates a new preflight checker with the given configuration
func NewChecker(cfg Config) *Checker {
	c := &Checker{
		skipped: cfg.Skip,
		quiet:   cfg.Quiet,
	}

	if cfg.WorkspacePath != "" {
		c.checks = append(c.checks, &WorkspaceCheck{Path: cfg.WorkspacePath})
	}
	if cfg.RunnerExecutable != "" {
		c.checks = append(c.checks, &RunnerCheck{Executable: cfg.RunnerExecutable})
	}
	if cfg.Docker != nil {
		c.checks = append(c.checks, &DockerCheck{Daemon: cfg.Docker})
	}
	if cfg.RequireGitHubToken {
		c.checks = append(c.checks, &GitHubTokenCheck{Token: cfg.Token})
	}

	return c
}

// Checks returns the registered checks in run order.
func (c *Checker) Checks() []Check {
	return c.checks
}

// Run executes all registered checks and returns an error if any critical checks fail
func (c *Checker) Run(ctx context.Context) error {
	if c.skipped {
		cblog.Info("preflight checks skipped")
		return nil
	}

	cblog.Progress("running preflight checks")

	var errs []string
	warnings := 0

	for _, check := range c.checks {
		result := check.Run(ctx)

		switch result.Level {
		case LevelError:
			cblog.Error("preflight check failed", "check", result.Name, "message", result.Message)
			if result.Error != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", result.Name, result.Error))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %s", result.Name, result.Message))
			}
		case LevelWarn:
			cblog.Warn("preflight check warning", "check", result.Name, "message", result.Message, "error", result.Error)
			warnings++
		case LevelInfo:
			if !c.quiet {
				cblog.Info("preflight check", "check", result.Name, "message", result.Message)
			}
		}
	}

	if warnings > 0 {
		cblog.Info("preflight warnings", "count", warnings)
	}

	if len(errs) > 0 {
		return fmt.Errorf("preflight checks failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	cblog.Progress("preflight checks passed")
	return nil
}

// WorkspaceCheck checks that the working directory exists and accepts the report file
type WorkspaceCheck struct {
	Path string
}

func (c *WorkspaceCheck) Name() string {
	return "workspace"
}

func (c *WorkspaceCheck) Run(ctx context.Context) CheckResult {
	absPath, err := filepath.Abs(c.Path)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("failed to resolve workspace path: %s", c.Path),
			Error:   err,
		}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		msg := fmt.Sprintf("cannot access workspace path: %s", absPath)
		if os.IsNotExist(err) {
			msg = fmt.Sprintf("workspace path does not exist: %s", absPath)
		}
		return CheckResult{Name: c.Name(), Level: LevelError, Message: msg, Error: err}
	}

	if !info.IsDir() {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("workspace path is not a directory: %s", absPath),
			Error:   fmt.Errorf("not a directory: %s", absPath),
		}
	}

	// jest writes report.json here
	probe := filepath.Join(absPath, fmt.Sprintf(".coverbot-write-test-%d", os.Getpid()))
	f, err := os.Create(probe)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("workspace is not writable: %s", absPath),
			Error:   err,
		}
	}
	f.Close()
	_ = os.Remove(probe)

	if isFilesystemRoot(absPath) {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: "workspace is the filesystem root, coverage file names will not be shortened",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("workspace is writable: %s", absPath),
	}
}

// isFilesystemRoot reports whether path is / or a Windows volume root.
func isFilesystemRoot(path string) bool {
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) {
		return true
	}
	volume := filepath.VolumeName(clean)
	return volume != "" && clean == volume+string(filepath.Separator)
}

// RunnerCheck checks that the runner executable resolves on PATH. A miss is
// only a warning because the runner reports the spawn failure itself.
type RunnerCheck struct {
	Executable string
}

func (c *RunnerCheck) Name() string {
	return "runner"
}

func (c *RunnerCheck) Run(ctx context.Context) CheckResult {
	path, err := exec.LookPath(c.Executable)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("%s not found on PATH. Install Node.js dependencies before this step, or set the launcher/jest inputs", c.Executable),
			Error:   err,
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("runner executable found: %s", path),
	}
}

// DockerCheck checks that the docker daemon answers
type DockerCheck struct {
	Daemon Pinger
}

func (c *DockerCheck) Name() string {
	return "docker"
}

func (c *DockerCheck) Run(ctx context.Context) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Daemon.Ping(checkCtx); err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: "docker daemon is not reachable; the containerized test run will likely fail",
			Error:   err,
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: "docker daemon is reachable",
	}
}

// GitHubTokenCheck checks that a token is available for the PR comment
type GitHubTokenCheck struct {
	Token string
}

func (c *GitHubTokenCheck) Name() string {
	return "github-token"
}

func (c *GitHubTokenCheck) Run(ctx context.Context) CheckResult {
	if strings.TrimSpace(c.Token) == "" {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: "GitHub token not found. Set GITHUB_TOKEN in the step env; the coverage comment will fail without it",
			Error:   fmt.Errorf("no GitHub token found"),
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: "GitHub token available",
	}
}
