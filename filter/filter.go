// Package filter gates post text against a fixed denylist.
package filter

import (
	"regexp"
	"strings"
)

const blockedReason = "Content contains inappropriate language"

var blockedWords = []string{
	// swear words
	"damn", "hell", "crap", "piss", "ass", "bitch", "bastard", "dick", "fuck", "shit",
	// mean or violent words
	"kill", "murder", "die", "hate", "stupid", "idiot", "moron", "dumb", "ugly", "fat",
	"attack", "fight", "hurt", "destroy", "violence", "weapon", "gun", "knife", "bomb", "gng", "sybau",
}

// Whole-word patterns, compiled once. Non-word characters count as boundaries, so "shit!" matches
// and "hello" does not match "hell".
var blockedPatterns = compile(blockedWords)

type Result struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

func compile(words []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, word := range words {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}
	return patterns
}

// FilterContent reports whether text contains a denylisted word. The first match wins.
// Callers skip empty or whitespace-only text.
func FilterContent(text string) Result {
	lower := strings.ToLower(text)
	for _, pattern := range blockedPatterns {
		if pattern.MatchString(lower) {
			return Result{Blocked: true, Reason: blockedReason}
		}
	}
	return Result{Blocked: false}
}
