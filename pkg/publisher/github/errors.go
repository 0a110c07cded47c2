package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v68/github"
)

// RateLimitInfo is the rate limit state reported with an error.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     int64
}

// APIError is a GitHub API failure reduced to what callers act on.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []github.Error
	RateLimit  *RateLimitInfo
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GitHub API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// AsAPIError extracts an APIError from go-github errors. It returns nil for
// transport failures and other non-API errors.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &APIError{
			StatusCode: statusOf(rateErr.Response),
			Message:    rateErr.Message,
			RateLimit: &RateLimitInfo{
				Limit:     rateErr.Rate.Limit,
				Remaining: rateErr.Rate.Remaining,
				Reset:     rateErr.Rate.Reset.Unix(),
			},
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &APIError{
			StatusCode: statusOf(abuseErr.Response),
			Message:    abuseErr.Message,
			RateLimit:  &RateLimitInfo{},
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return &APIError{
			StatusCode: statusOf(respErr.Response),
			Message:    respErr.Message,
			Errors:     respErr.Errors,
		}
	}
	return nil
}

// IsRateLimitError reports primary or secondary rate limiting.
func IsRateLimitError(err error) bool {
	apiErr := AsAPIError(err)
	if apiErr == nil {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return apiErr.StatusCode == http.StatusForbidden && apiErr.RateLimit != nil && apiErr.RateLimit.Remaining == 0
}

// IsNotFoundError reports a missing repository or pull request. GitHub also
// answers 404 when the token cannot see a private repository.
func IsNotFoundError(err error) bool {
	apiErr := AsAPIError(err)
	return apiErr != nil && apiErr.StatusCode == http.StatusNotFound
}

// IsAuthenticationError reports a rejected or underprivileged token.
func IsAuthenticationError(err error) bool {
	apiErr := AsAPIError(err)
	if apiErr == nil {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return true
	case http.StatusForbidden:
		return apiErr.RateLimit == nil
	default:
		return false
	}
}

// Hint returns a short remediation for a failed comment, or "".
func Hint(err error) string {
	switch {
	case IsRateLimitError(err):
		return "GitHub API rate limit exceeded; the comment was not retried"
	case IsAuthenticationError(err):
		return "the token needs the pull-requests: write (or issues: write) permission"
	case IsNotFoundError(err):
		return "pull request not found, or the token cannot access the repository"
	default:
		return ""
	}
}
