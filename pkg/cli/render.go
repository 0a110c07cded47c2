package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/holon-run/coverbot/pkg/actions"
	"github.com/holon-run/coverbot/pkg/comment"
	"github.com/holon-run/coverbot/pkg/coverage"
	cblog "github.com/holon-run/coverbot/pkg/log"
	ghpub "github.com/holon-run/coverbot/pkg/publisher/github"
	"github.com/holon-run/coverbot/pkg/report"
)

type renderFlags struct {
	reportPath string
	scope      string
	cwd        string
	preview    bool
	style      string
	width      int
	pr         string
}

var renderOpts renderFlags

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the coverage comment for an existing report",
	Long: `Load a jest JSON report and print the comment body coverbot would post.

With --pr the body is posted as a new comment on that pull request using
GITHUB_TOKEN (or GH_TOKEN) and GITHUB_API_URL.

Examples:
  coverbot render --report report.json
  coverbot render --report report.json --scope unit --preview --style dark
  coverbot render --report report.json --pr acme/widgets#42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderReport(cmd, renderOpts, os.Getenv)
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderOpts.reportPath, "report", "r", "", "Path to the jest JSON report (required)")
	f.StringVar(&renderOpts.scope, "scope", "", "Scope shown in the comment title")
	f.StringVar(&renderOpts.cwd, "cwd", "", "Prefix stripped from file names (default: current directory)")
	f.BoolVar(&renderOpts.preview, "preview", false, "Render the markdown for the terminal")
	f.StringVar(&renderOpts.style, "style", "auto", "Preview style: auto, dark, light, notty, ascii")
	f.IntVar(&renderOpts.width, "width", 100, "Preview word wrap width")
	f.StringVar(&renderOpts.pr, "pr", "", "Post the body to this pull request (owner/repo#N or URL)")
	_ = renderCmd.MarkFlagRequired("report")
	rootCmd.AddCommand(renderCmd)
}

func renderReport(cmd *cobra.Command, opts renderFlags, getenv func(string) string) error {
	cwd := opts.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cwd = wd
	}

	rep, err := report.Load(opts.reportPath)
	if err != nil {
		return err
	}
	if err := rep.Check(); err != nil {
		cblog.Warn("report has failing tests", "failed", rep.NumFailedTests)
	}

	rows, err := coverage.Summarize(rep.CoverageMap, cwd)
	if err != nil {
		if errors.Is(err, coverage.ErrNoEntries) {
			return fmt.Errorf("no entries found in coverage data of %s", opts.reportPath)
		}
		return err
	}
	body := comment.Body(opts.scope, rows)

	if opts.preview {
		out, err := comment.Preview(body, opts.style, opts.width)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), body)
	}

	if opts.pr == "" {
		return nil
	}
	return postBody(cmd.Context(), opts.pr, body, getenv)
}

func postBody(ctx context.Context, target, body string, getenv func(string) string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ref, err := ghpub.ParsePRRef(target)
	if err != nil {
		return err
	}
	apiURL := getenv("GITHUB_API_URL")
	if apiURL == "" {
		apiURL = actions.DefaultAPIURL
	}
	client, err := ghpub.NewClient(ctx, actions.Token(getenv), apiURL)
	if err != nil {
		return err
	}
	id, err := ghpub.NewCommenter(client).CreateComment(ctx, ref.Payload(body))
	if err != nil {
		return err
	}
	cblog.Progress("coverage comment posted", "target", ref.String(), "id", id)
	return nil
}
