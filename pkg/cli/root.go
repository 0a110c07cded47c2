// Package cli holds the coverbot cobra commands.
package cli

import (
	"errors"

	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"

	cblog "github.com/holon-run/coverbot/pkg/log"
)

// errStepFailed is returned after the failures were already reported as
// workflow error commands.
var errStepFailed = errors.New("coverbot step failed")

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "coverbot",
	Short: "Run jest with coverage and comment the results on the pull request.",
	Long: `coverbot runs a jest test suite as a GitHub Actions step. It fails the step
when tests fail and, on pull_request events, posts a coverage table as a new
PR comment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := cblog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		cblog.Init(cblog.Config{Level: level, Output: cmd.ErrOrStderr()})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "progress", "Log level: debug, info, progress, warn, error")
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	defer func() { _ = cblog.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errStepFailed) {
			githubactions.New(githubactions.WithWriter(rootCmd.OutOrStdout())).Errorf("%s", err.Error())
		}
		return 1
	}
	return 0
}
