package model

import (
	"strings"

	"github.com/gobwas/glob"
)

// ClassificationRule assigns a category to transactions whose description
// matches one of its wildcard patterns. Matching is case-insensitive and
// multi-valued: every rule that matches contributes its category.
type ClassificationRule struct {
	Category string   `json:"category"`
	Matchers []string `json:"matchers"`
}

// Matches reports whether any of the rule's patterns match the description.
// Invalid patterns never match.
func (r *ClassificationRule) Matches(description string) bool {
	lowered := strings.ToLower(description)

	for _, matcher := range r.Matchers {
		g, err := glob.Compile(strings.ToLower(matcher))
		if err != nil {
			continue
		}
		if g.Match(lowered) {
			return true
		}
	}

	return false
}

// Classify returns the union of the categories of every rule matching the
// description, in rule order, without duplicates.
func Classify(rules []ClassificationRule, description string) []string {
	var categories []string
	seen := make(map[string]struct{})

	for _, rule := range rules {
		if !rule.Matches(description) {
			continue
		}
		if _, ok := seen[rule.Category]; ok {
			continue
		}
		seen[rule.Category] = struct{}{}
		categories = append(categories, rule.Category)
	}

	return categories
}
