// Package publisher defines how the coverage comment reaches a pull request.
package publisher

import (
	"context"
	"fmt"
	"strings"
)

// CommentPayload is one PR comment, built once and sent once.
type CommentPayload struct {
	Owner       string
	Repo        string
	IssueNumber int
	Body        string
}

// Validate checks that the payload addresses a concrete pull request.
func (p CommentPayload) Validate() error {
	if p.Owner == "" || p.Repo == "" || p.IssueNumber <= 0 {
		return fmt.Errorf("incomplete comment target: owner=%s, repo=%s, issue_number=%d", p.Owner, p.Repo, p.IssueNumber)
	}
	if strings.TrimSpace(p.Body) == "" {
		return fmt.Errorf("comment body is empty")
	}
	return nil
}

// Target renders the payload address as owner/repo#number.
func (p CommentPayload) Target() string {
	return fmt.Sprintf("%s/%s#%d", p.Owner, p.Repo, p.IssueNumber)
}

// Publisher posts comments. Implementations always create a new comment.
//
//go:generate mockgen -destination=../../mocks/mock_publisher.go -package=mocks . Publisher
type Publisher interface {
	CreateComment(ctx context.Context, payload CommentPayload) (int64, error)
}

// ParseRepository splits an owner/repo name.
func ParseRepository(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q (expected owner/repo)", fullName)
	}
	return owner, repo, nil
}
