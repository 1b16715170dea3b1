// Package errors provides enhanced error messages with suggestions.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmurray2011/logweave/internal/source"
)

// SuggestiveError is an error that includes suggestions for fixing the problem.
type SuggestiveError struct {
	Message     string
	Suggestions []string
	HelpCommand string

	// Err is the underlying sentinel, if any, for errors.Is checks.
	Err error
}

func (e *SuggestiveError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, s := range e.Suggestions {
			b.WriteString("  ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	if e.HelpCommand != "" {
		b.WriteString("\nRun '")
		b.WriteString(e.HelpCommand)
		b.WriteString("' for more information.")
	}

	return b.String()
}

func (e *SuggestiveError) Unwrap() error {
	return e.Err
}

// GroupNotFoundError creates an error for a log group that doesn't exist.
// It unwraps to source.ErrGroupNotFound.
func GroupNotFoundError(name string, available []string) error {
	return &SuggestiveError{
		Message:     fmt.Sprintf("log group %q not found", name),
		Suggestions: findSimilar(name, available, 5),
		HelpCommand: "logweave groups",
		Err:         source.ErrGroupNotFound,
	}
}

// AliasNotFoundError creates an error for an @alias missing from the config file.
func AliasNotFoundError(alias string, available []string) error {
	return &SuggestiveError{
		Message:     fmt.Sprintf("group alias %q not found", alias),
		Suggestions: findSimilar(alias, available, 3),
		HelpCommand: "logweave groups --aliases",
		Err:         source.ErrGroupNotFound,
	}
}

// InvalidTimeError creates an error for invalid time format.
func InvalidTimeError(input string) error {
	return &SuggestiveError{
		Message: fmt.Sprintf("invalid time format %q", input),
		Suggestions: []string{
			"Relative: 1h, 30m, 2d, 1w (hours, minutes, days, weeks ago)",
			"Absolute: 2024-01-15T10:30:00Z (RFC3339)",
			"Date only: 2024-01-15 (midnight UTC)",
		},
	}
}

// MissingFlagError creates an error for a missing required flag.
func MissingFlagError(flag string, examples []string) error {
	return &SuggestiveError{
		Message:     fmt.Sprintf("%s is required", flag),
		Suggestions: examples,
	}
}

// findSimilar finds strings similar to target using Levenshtein distance.
// Candidates containing target as a substring always qualify.
func findSimilar(target string, candidates []string, maxDistance int) []string {
	type match struct {
		value    string
		distance int
	}

	var matches []match
	targetLower := strings.ToLower(target)

	for _, c := range candidates {
		cLower := strings.ToLower(c)
		d := levenshtein(targetLower, cLower)
		if d <= maxDistance || (targetLower != "" && strings.Contains(cLower, targetLower)) {
			matches = append(matches, match{value: c, distance: d})
		}
	}

	// Sort by distance (closest first)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var result []string
	for i := 0; i < len(matches) && i < 3; i++ {
		result = append(result, matches[i].value)
	}

	return result
}

// levenshtein calculates the Levenshtein distance between two strings
// using two rolling rows.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
