// Package redact scrubs credential-looking substrings from text before it
// is sent to a language model or posted back to a thread.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

type Finding struct {
	Kind    string
	Pattern string
}

type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles the given patterns in order. Order matters: earlier
// patterns claim their matches first, so put the most specific ones first.
func New(patterns []string) (*Redactor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile secret pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return &Redactor{patterns: compiled}, nil
}

// ContainsSecrets reports whether any pattern matches, without mutating.
func (r *Redactor) ContainsSecrets(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Redact replaces secret-looking substrings with [REDACTED_<KIND>] and
// reports one finding per match. The kind comes from the first capture
// group when the pattern has one, "credential" otherwise.
//
// Replacement is textual, not positional: the captured secret text is
// replaced everywhere it occurs. A secret that happens to equal an
// innocent short string would take that string with it, which is why
// secrets of 4 bytes or fewer are left alone.
func (r *Redactor) Redact(text string) (string, []Finding) {
	var findings []Finding
	for _, re := range r.patterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			kind := "credential"
			if len(match) > 1 && strings.TrimSpace(match[1]) != "" {
				kind = strings.ToLower(strings.TrimSpace(match[1]))
			}
			kind = strings.ReplaceAll(kind, " ", "_")
			findings = append(findings, Finding{Kind: kind, Pattern: re.String()})

			secret := match[len(match)-1]
			if len(secret) <= 4 {
				continue
			}
			text = strings.ReplaceAll(text, secret, "[REDACTED_"+strings.ToUpper(kind)+"]")
		}
	}
	return text, findings
}
