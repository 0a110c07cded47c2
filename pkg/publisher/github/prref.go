package github

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var prRefPatterns = []*regexp.Regexp{
	// owner/repo#123
	regexp.MustCompile(`^([\w.-]+)/([\w.-]+)#(\d+)$`),
	// owner/repo/pull/123, optionally behind a host
	regexp.MustCompile(`^(?:https?://[^/]+/)?([\w.-]+)/([\w.-]+)/pull/(\d+)/?$`),
}

// ParsePRRef parses a pull request reference given on the command line.
func ParsePRRef(target string) (*PRRef, error) {
	target = strings.TrimSpace(target)

	for _, p := range prRefPatterns {
		matches := p.FindStringSubmatch(target)
		if matches == nil {
			continue
		}
		number, err := strconv.Atoi(matches[3])
		if err != nil || number <= 0 {
			return nil, fmt.Errorf("invalid pull request number in %q", target)
		}
		return &PRRef{Owner: matches[1], Repo: matches[2], PRNumber: number}, nil
	}

	return nil, fmt.Errorf("invalid PR reference format: %s (expected: owner/repo#123, owner/repo/pull/123 or a pull request URL)", target)
}

// String returns the owner/repo#123 form.
func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.PRNumber)
}
