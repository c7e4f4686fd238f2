package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassificationRuleMatches(t *testing.T) {
	tests := []struct {
		name        string
		rule        ClassificationRule
		description string
		want        bool
	}{
		{
			name:        "wildcard substring",
			rule:        ClassificationRule{Category: "Groceries", Matchers: []string{"*supermarket*"}},
			description: "Local Supermarket 42",
			want:        true,
		},
		{
			name:        "case insensitive",
			rule:        ClassificationRule{Category: "Coffee", Matchers: []string{"*CAFE*"}},
			description: "corner cafe paris",
			want:        true,
		},
		{
			name:        "no matcher hits",
			rule:        ClassificationRule{Category: "Rent", Matchers: []string{"*landlord*"}},
			description: "Local Supermarket 42",
			want:        false,
		},
		{
			name:        "any matcher suffices",
			rule:        ClassificationRule{Category: "Transport", Matchers: []string{"*metro*", "*train*"}},
			description: "Train ticket",
			want:        true,
		},
		{
			name:        "invalid pattern never matches",
			rule:        ClassificationRule{Category: "Broken", Matchers: []string{"[unclosed"}},
			description: "[unclosed",
			want:        false,
		},
		{
			name:        "no matchers",
			rule:        ClassificationRule{Category: "Empty"},
			description: "anything",
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(tt.description))
		})
	}
}

func TestClassify(t *testing.T) {
	rules := []ClassificationRule{
		{Category: "Food", Matchers: []string{"*supermarket*", "*bakery*"}},
		{Category: "Daily", Matchers: []string{"*supermarket*", "*pharmacy*"}},
		{Category: "Food", Matchers: []string{"*restaurant*"}},
	}

	tests := []struct {
		name        string
		description string
		want        []string
	}{
		{
			name:        "union of all matching rules",
			description: "Supermarket purchase",
			want:        []string{"Food", "Daily"},
		},
		{
			name:        "duplicate category emitted once",
			description: "supermarket restaurant",
			want:        []string{"Food", "Daily"},
		},
		{
			name:        "single rule",
			description: "Pharmacy",
			want:        []string{"Daily"},
		},
		{
			name:        "no match",
			description: "Gas station",
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(rules, tt.description))
		})
	}
}
