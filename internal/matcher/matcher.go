// Package matcher decides whether a search hit names the product that was asked for.
package matcher

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Normalize case-folds text, turns every run of non-alphanumeric characters into a
// single space and trims the result. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	folded := strings.ToLower(text)
	spaced := nonAlphanumeric.ReplaceAllString(folded, " ")
	return strings.Join(strings.Fields(spaced), " ")
}

// Policy compares an already normalized query against an already normalized candidate.
type Policy interface {
	Name() string
	Accept(query, candidate string) bool
}

// PolicyFunc adapts a plain predicate to Policy.
type PolicyFunc struct {
	Label string
	Fn    func(query, candidate string) bool
}

func (p PolicyFunc) Name() string                        { return p.Label }
func (p PolicyFunc) Accept(query, candidate string) bool { return p.Fn(query, candidate) }

// PrefixPolicy accepts candidates that start with the query. Used where URL slugs mirror the query.
var PrefixPolicy Policy = PolicyFunc{Label: "prefix", Fn: strings.HasPrefix}

// SubstringPolicy accepts candidates containing the query anywhere. Used where sites prepend marketing text.
var SubstringPolicy Policy = PolicyFunc{Label: "substring", Fn: strings.Contains}

// Matcher applies one Policy to raw, unnormalized text.
type Matcher struct {
	policy Policy
}

func New(policy Policy) *Matcher {
	if policy == nil {
		policy = SubstringPolicy
	}
	return &Matcher{policy: policy}
}

func (m *Matcher) Policy() Policy {
	return m.policy
}

// IsMatch reports whether candidateName names the queried product. An empty
// or whitespace-only query never matches anything.
func (m *Matcher) IsMatch(query, candidateName string) bool {
	q := Normalize(query)
	if q == "" {
		return false
	}
	c := Normalize(candidateName)
	if c == "" {
		return false
	}
	return m.policy.Accept(q, c)
}

// Filter keeps the names accepted by the matcher, preserving order.
func (m *Matcher) Filter(query string, names []string) []int {
	var idx []int
	for i, n := range names {
		if m.IsMatch(query, n) {
			idx = append(idx, i)
		}
	}
	return idx
}
