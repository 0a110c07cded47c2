// Package trigger decides whether a run should stop before doing any work.
package trigger

import "github.com/samber/lo"

// ShouldSkip reports whether the skip label is among the pull request labels.
// Runs without a pull request payload have no labels and never match.
func ShouldSkip(skipOn string, labels []string) bool {
	if skipOn == "" {
		return false
	}
	return lo.Contains(labels, skipOn)
}
