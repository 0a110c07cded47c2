// Package github posts coverage comments through the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	cblog "github.com/holon-run/coverbot/pkg/log"
	"github.com/holon-run/coverbot/pkg/publisher"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// IsEnterprise reports whether apiURL points somewhere other than github.com.
func IsEnterprise(apiURL string) bool {
	apiURL = strings.TrimSuffix(strings.TrimSpace(apiURL), "/")
	return apiURL != "" && apiURL != DefaultAPIURL
}

// uploadURL derives the enterprise upload endpoint from the REST endpoint.
func uploadURL(apiURL string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(apiURL, "/"), "/api/v3")
	return base + "/api/uploads/"
}

// NewClient creates a go-github client authenticated with token. The HTTP
// client stored in ctx under oauth2.HTTPClient, if any, carries the requests.
// An empty token yields an anonymous client.
func NewClient(ctx context.Context, token, apiURL string) (*github.Client, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	} else if base, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		httpClient = base
	}
	client := github.NewClient(httpClient)

	if IsEnterprise(apiURL) {
		enterprise, err := client.WithEnterpriseURLs(apiURL, uploadURL(apiURL))
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
		}
		return enterprise, nil
	}
	return client, nil
}

// Commenter creates pull request comments.
type Commenter struct {
	client *github.Client
}

var _ publisher.Publisher = (*Commenter)(nil)

// NewCommenter wraps an existing client.
func NewCommenter(client *github.Client) *Commenter {
	return &Commenter{client: client}
}

// CreateComment always posts a new comment; earlier comments are left alone.
func (c *Commenter) CreateComment(ctx context.Context, payload publisher.CommentPayload) (int64, error) {
	if err := payload.Validate(); err != nil {
		return 0, err
	}

	comment, resp, err := c.client.Issues.CreateComment(ctx, payload.Owner, payload.Repo, payload.IssueNumber, &github.IssueComment{
		Body: github.Ptr(payload.Body),
	})
	if err != nil {
		if apiErr := AsAPIError(err); apiErr != nil {
			err = apiErr
		}
		if hint := Hint(err); hint != "" {
			return 0, fmt.Errorf("failed to create comment on %s: %w (%s)", payload.Target(), err, hint)
		}
		return 0, fmt.Errorf("failed to create comment on %s: %w", payload.Target(), err)
	}

	cblog.Info("comment created", "target", payload.Target(), "id", comment.GetID(), "url", comment.GetHTMLURL(), "rate_remaining", resp.Rate.Remaining)
	return comment.GetID(), nil
}
