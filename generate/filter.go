package generate

import (
	"regexp"
	"strings"
)

var comparisonPrefixes = []string{
	"what is the difference between",
	"explain the difference between",
}

var reComparison = regexp.MustCompile(`(?i)(?:what is|explain) the difference between (.+)\?`)

// IsWellFormed reports whether a generated question is acceptable.
// Only comparison questions ("What is the difference between A and B?") are
// checked: they must name exactly two distinct entities. Everything else passes.
func IsWellFormed(question string) bool {
	lower := strings.ToLower(question)
	isComparison := false
	for _, p := range comparisonPrefixes {
		if strings.HasPrefix(lower, p) {
			isComparison = true
			break
		}
	}
	if !isComparison {
		return true
	}

	m := reComparison.FindStringSubmatch(question)
	if m == nil {
		return false
	}

	entities := comparisonEntities(m[1])
	if len(entities) != 2 {
		return false
	}
	return strings.ToLower(entities[0]) != strings.ToLower(entities[1])
}

// comparisonEntities splits the compared text into entities. The text must
// contain the literal substring "and"; the pieces around it are split again on
// commas so that lists like "A, B, and C" count every item. The split is
// case-sensitive and does not respect word boundaries, so "Pandas" splits too.
// It returns nil when there is no "and".
func comparisonEntities(content string) []string {
	pieces := strings.Split(content, "and")
	if len(pieces) < 2 {
		return nil
	}
	var entities []string
	for _, piece := range pieces {
		for _, part := range strings.Split(piece, ",") {
			if e := strings.TrimSpace(part); e != "" {
				entities = append(entities, e)
			}
		}
	}
	return entities
}

// dedupKey is the identity used for question deduplication.
func dedupKey(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Deduplicate removes questions equal to an earlier one ignoring case and
// surrounding whitespace. The first occurrence is kept in its original form.
func Deduplicate(questions []string) []string {
	seen := make(map[string]bool, len(questions))
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		key := dedupKey(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
