package util

import (
	"sort"
	"strings"
)

// SplitLines splits command output into lines, normalizing CRLF and dropping
// the empty element produced by a trailing newline.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// CompactStrings trims every element and drops the ones left blank.
func CompactStrings(items []string) []string {
	var out []string
	for _, item := range items {
		if t := strings.TrimSpace(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinOrNone joins strings with ", " or returns "(none)" for empty slices.
func JoinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// LevenshteinDistance returns the edit distance between a and b.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// maxSuggestDistance bounds how different a candidate may be and still be suggested.
const maxSuggestDistance = 2

// SuggestSimilar returns up to limit candidates close to input, nearest first.
// Comparison is case-insensitive.
func SuggestSimilar(input string, candidates []string, limit int) []string {
	if input == "" || len(candidates) == 0 {
		return nil
	}

	type scored struct {
		name string
		dist int
	}
	var matches []scored
	lower := strings.ToLower(input)
	for _, c := range candidates {
		d := LevenshteinDistance(lower, strings.ToLower(c))
		if d <= maxSuggestDistance {
			matches = append(matches, scored{c, d})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].name < matches[j].name
	})

	var out []string
	for i, m := range matches {
		if limit > 0 && i >= limit {
			break
		}
		out = append(out, m.name)
	}
	return out
}
