package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"

	"github.com/holon-run/coverbot/pkg/actions"
	"github.com/holon-run/coverbot/pkg/config"
	cblog "github.com/holon-run/coverbot/pkg/log"
	"github.com/holon-run/coverbot/pkg/log/redact"
	"github.com/holon-run/coverbot/pkg/pipeline"
	"github.com/holon-run/coverbot/pkg/preflight"
	"github.com/holon-run/coverbot/pkg/publisher"
	ghpub "github.com/holon-run/coverbot/pkg/publisher/github"
	"github.com/holon-run/coverbot/pkg/runner"
	"github.com/holon-run/coverbot/pkg/trigger"
)

type runFlags struct {
	configPath    string
	workdir       string
	skipPreflight bool

	skipOn      string
	jest        string
	scope       string
	launcher    string
	image       string
	stepSummary bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tests and comment coverage on the pull request",
	Long: `Run jest with JSON and coverage output, fail when tests fail and, for
pull_request events, post the coverage table as a new PR comment.

Settings come from flags, then INPUT_* action inputs, then the config file
(.coverbot.yaml in the working directory unless --config is given), then defaults.

Examples:
  coverbot run
  coverbot run --launcher yarn --jest "yarn test" --scope unit
  coverbot run --image node:20 --step-summary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		action := githubactions.New(githubactions.WithWriter(cmd.OutOrStdout()))
		return runStep(cmd, runOpts, action, os.Getenv)
	},
}

func init() {
	bindRunFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

func bindRunFlags(cmd *cobra.Command, o *runFlags) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "Path to a coverbot YAML config file")
	f.StringVarP(&o.workdir, "workdir", "w", ".", "Directory the tests run in")
	f.BoolVar(&o.skipPreflight, "skip-preflight", false, "Skip environment checks")
	f.StringVar(&o.skipOn, config.InputSkipOn, "", "PR label that skips the run")
	f.StringVar(&o.jest, config.InputJest, "", "Runner command line (default \"npx jest\")")
	f.StringVar(&o.scope, config.InputScope, "", "Scope shown in the comment title")
	f.StringVar(&o.launcher, config.InputLauncher, "", "Launcher kind: npm, npx, pnpm, yarn or direct")
	f.StringVar(&o.image, config.InputImage, "", "Run the tests inside this Docker image")
	f.BoolVar(&o.stepSummary, config.InputStepSummary, false, "Also write the comment to the job summary")
}

// resolveConfig layers defaults, the config file, action inputs and flags.
func resolveConfig(cmd *cobra.Command, opts runFlags, getInput func(string) string, workdir string) (config.Config, error) {
	cfg, err := config.Load(workdir, opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyInputs(getInput); err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override(config.InputSkipOn, &cfg.SkipOn, opts.skipOn)
	override(config.InputJest, &cfg.Jest, opts.jest)
	override(config.InputScope, &cfg.Scope, opts.scope)
	override(config.InputLauncher, &cfg.Launcher, opts.launcher)
	override(config.InputImage, &cfg.Image, opts.image)
	if flags.Changed(config.InputStepSummary) {
		cfg.StepSummary = opts.stepSummary
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	return cfg, cfg.Validate()
}

func runStep(cmd *cobra.Command, opts runFlags, action *githubactions.Action, getenv func(string) string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	workdir, err := filepath.Abs(opts.workdir)
	if err != nil {
		return fmt.Errorf("failed to resolve workdir: %w", err)
	}

	cfg, err := resolveConfig(cmd, opts, action.GetInput, workdir)
	if err != nil {
		return err
	}
	level, _ := cblog.ParseLevel(cfg.LogLevel)
	cblog.Init(cblog.Config{Level: level, Output: cmd.ErrOrStderr()})

	ghctx, err := actions.Load(action, getenv, workdir)
	if err != nil {
		return err
	}
	cblog.Info("step context", "event", ghctx.EventName, "repository", ghctx.FullName(), "workdir", workdir, "launcher", cfg.Launcher)

	preflightCfg := preflight.Config{
		Skip:               opts.skipPreflight || trigger.ShouldSkip(cfg.SkipOn, ghctx.Labels()),
		Quiet:              true,
		WorkspacePath:      workdir,
		RequireGitHubToken: ghctx.IsPullRequest(),
		Token:              ghctx.Token,
	}

	redactor := redact.New(ghctx.Token)
	var run runner.Runner
	if cfg.Image != "" {
		container, err := runner.NewContainerRunner(cfg.Image)
		if err != nil {
			return err
		}
		container.Env = []string{"CI=true"}
		container.Redactor = redactor
		run = container
		preflightCfg.Docker = container
	} else {
		run = &runner.ExecRunner{Redactor: redactor}
		if argv, err := runner.SplitCommand(cfg.Jest); err == nil {
			preflightCfg.RunnerExecutable = argv[0]
		}
	}

	if err := preflight.NewChecker(preflightCfg).Run(ctx); err != nil {
		return err
	}

	var pub publisher.Publisher
	if ghctx.IsPullRequest() {
		client, err := ghpub.NewClient(ctx, ghctx.Token, ghctx.APIURL)
		if err != nil {
			cblog.Warn("cannot create GitHub client, comment will be skipped", "error", err)
		} else {
			pub = ghpub.NewCommenter(client)
		}
	}

	var summary func(string)
	if cfg.StepSummary {
		summary = func(markdown string) { action.AddStepSummary(markdown) }
	}

	out, err := pipeline.Run(ctx, pipeline.Options{
		Config:      cfg,
		Context:     ghctx,
		Runner:      run,
		Publisher:   pub,
		StepSummary: summary,
	})
	if err != nil {
		return err
	}

	for _, failure := range out.Failures {
		action.Errorf("%s", failure.Error())
	}
	if out.Failed() {
		return errStepFailed
	}
	if out.Posted {
		cblog.Progress("coverage comment posted", "id", out.CommentID)
	}
	return nil
}
