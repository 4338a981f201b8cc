// Package claims parses natural-language claims, grounds their mentions to
// entities, and verifies them against the knowledge graph.
package claims

import (
	"regexp"
	"strings"
)

// ClaimType classifies what kind of statement a claim makes.
type ClaimType string

const (
	// ClaimAttribution covers creation and authorship ("X invented Y").
	ClaimAttribution ClaimType = "attribution"

	// ClaimLocation covers containment ("X is in Y").
	ClaimLocation ClaimType = "location"

	// ClaimTemporal covers dated events ("X was born in 1879").
	ClaimTemporal ClaimType = "temporal"

	// ClaimProperty covers type statements ("X is a Y").
	ClaimProperty ClaimType = "property"

	// ClaimRelation is a generic association, used as a fallback.
	ClaimRelation ClaimType = "relation"
)

// Parsed is the structured form of a claim.
type Parsed struct {
	Type     ClaimType
	Subject  string
	Relation string
	Object   string
}

// claimPattern pairs a claim type with a recognizer. Patterns are tried in
// order; the first match wins, so attribution outranks the looser property
// patterns.
type claimPattern struct {
	typ ClaimType
	re  *regexp.Regexp
}

var claimPatterns = []claimPattern{
	{ClaimAttribution, regexp.MustCompile(`(?i)^(.+?)\s+(created|wrote|invented|developed|discovered|founded|built)\s+(.+)`)},
	{ClaimAttribution, regexp.MustCompile(`(?i)^(.+?)\s+is\s+the\s+(creator|inventor|author|founder|discoverer)\s+of\s+(.+)`)},
	{ClaimLocation, regexp.MustCompile(`(?i)^(.+?)\s+is\s+(in|located in|situated in)\s+(.+)`)},
	{ClaimLocation, regexp.MustCompile(`(?i)^(.+?)\s+is\s+the\s+capital\s+of\s+(.+)`)},
	{ClaimTemporal, regexp.MustCompile(`(?i)^(.+?)\s+was\s+born\s+in\s+(\d{4})`)},
	{ClaimTemporal, regexp.MustCompile(`(?i)^(.+?)\s+(happened|occurred)\s+in\s+(\d{4})`)},
	{ClaimProperty, regexp.MustCompile(`(?i)^(.+?)\s+is\s+(?:a|an)\s+(.+)`)},
	{ClaimProperty, regexp.MustCompile(`(?i)^(.+?)\s+was\s+(?:a|an)\s+(.+)`)},
}

// Parse extracts (type, subject, relation, object) from a claim. It returns
// false when no pattern recognizes the claim.
func Parse(claim string) (Parsed, bool) {
	claim = strings.TrimRight(strings.TrimSpace(claim), ".")

	for _, cp := range claimPatterns {
		m := cp.re.FindStringSubmatch(claim)
		if m == nil {
			continue
		}
		groups := m[1:]
		parsed := Parsed{
			Type:    cp.typ,
			Subject: strings.TrimSpace(groups[0]),
			Object:  strings.TrimSpace(groups[len(groups)-1]),
		}
		// Three-group patterns carry the relation in the middle group.
		if len(groups) > 2 {
			parsed.Relation = strings.TrimSpace(groups[1])
		}
		return parsed, true
	}
	return Parsed{}, false
}

// NormalizeRelation folds a relation name for comparison, collapsing
// CamelCase, underscores, hyphens, and spaces ("AtLocation" and "at_location"
// both become "atlocation").
func NormalizeRelation(rel string) string {
	rel = strings.ToLower(rel)
	rel = strings.ReplaceAll(rel, "_", "")
	rel = strings.ReplaceAll(rel, "-", "")
	rel = strings.ReplaceAll(rel, " ", "")
	return rel
}
