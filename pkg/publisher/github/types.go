package github

import "github.com/holon-run/coverbot/pkg/publisher"

// PRRef identifies a pull request outside of an Actions run.
// Supports formats: "owner/repo#123", "owner/repo/pull/123" and the PR URL.
type PRRef struct {
	Owner    string
	Repo     string
	PRNumber int
}

// Payload addresses body to the referenced pull request.
func (r PRRef) Payload(body string) publisher.CommentPayload {
	return publisher.CommentPayload{
		Owner:       r.Owner,
		Repo:        r.Repo,
		IssueNumber: r.PRNumber,
		Body:        body,
	}
}
