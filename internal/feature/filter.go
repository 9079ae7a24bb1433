package feature

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// SearchState holds the transient filter criteria.
type SearchState struct {
	Term     string `json:"term"`
	Category string `json:"category"`
}

// Active reports whether either criterion is set.
func (s SearchState) Active() bool {
	return s.Term != "" || s.Category != ""
}

// FilteredView is a filter result with the counts the search panel shows.
type FilteredView struct {
	Features []Feature `json:"features"`
	Total    int       `json:"total"`
	Filtered int       `json:"filtered"`
}

// Matches reports whether f satisfies the search state: a case-insensitive
// substring match on name for Term and on category for Category. Empty
// criteria match everything.
func (s SearchState) Matches(f Feature) bool {
	return containsFold(f.Name(), s.Term) && containsFold(f.Category(), s.Category)
}

// Filter returns the features matching s, in their original order.
func Filter(features []Feature, s SearchState) []Feature {
	out := make([]Feature, 0, len(features))
	for _, f := range features {
		if s.Matches(f) {
			out = append(out, f)
		}
	}
	return out
}

// Categories returns the sorted distinct non-empty categories.
func Categories(features []Feature) []string {
	seen := make(map[string]struct{}, len(features))
	out := make([]string, 0)
	for _, f := range features {
		c := f.Category()
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	folder := cases.Fold()
	return strings.Contains(folder.String(s), folder.String(substr))
}
