package index

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Query is a parsed search string. Every term must appear in an
// entry's search key, case-insensitively.
type Query struct {
	terms []string
}

// ParseQuery splits q into terms with shell quoting rules, so
// "fix bug" in quotes is a single term.
func ParseQuery(q string) (Query, error) {
	terms, err := shlex.Split(q)
	if err != nil {
		return Query{}, fmt.Errorf("parsing query %q: %w", q, err)
	}
	for i, t := range terms {
		terms[i] = strings.ToLower(t)
	}
	return Query{terms: terms}, nil
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool { return len(q.terms) == 0 }

// Terms returns the lowercased terms.
func (q Query) Terms() []string { return q.terms }

// Match reports whether e satisfies every term.
func (q Query) Match(e SearchEntry) bool {
	if q.Empty() {
		return true
	}
	key := strings.ToLower(e.SearchKey())
	for _, t := range q.terms {
		if !strings.Contains(key, t) {
			return false
		}
	}
	return true
}

// Filter returns the entries matching q, preserving order. At
// most limit entries are returned when limit is positive.
func Filter(entries []SearchEntry, q Query, limit int) []SearchEntry {
	var out []SearchEntry
	for _, e := range entries {
		if !q.Match(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
