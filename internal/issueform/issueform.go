// Package issueform parses the markdown bodies produced by issue forms
// and free-form comments into normalized field maps.
package issueform

import (
	"regexp"
	"strings"
)

var headingRe = regexp.MustCompile(`^###\s+(.+?)\s*$`)

// keyValueRe catches "key: value" lines in free-form comments.
var keyValueRe = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 _/-]{0,40}?)\s*[:=]\s*(.+?)\s*$`)

// NormalizeKey folds a form heading or key into a field name: lowercase,
// inner whitespace and separators collapsed to single underscores.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.Trim(key, "?*")
	var b strings.Builder
	lastUnderscore := false
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// ParseForm splits an issue-form body on "### Heading" sections. Each
// section becomes one field keyed by the normalized heading. Sections
// whose value is empty or the issue-form placeholder "_No response_"
// are dropped.
func ParseForm(body string) map[string]string {
	fields := map[string]string{}
	var key string
	var value []string

	flush := func() {
		if key == "" {
			return
		}
		v := strings.TrimSpace(strings.Join(value, "\n"))
		if v != "" && !strings.EqualFold(v, "_No response_") {
			fields[key] = v
		}
		key = ""
		value = value[:0]
	}

	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			key = NormalizeKey(m[1])
			continue
		}
		if key != "" {
			value = append(value, line)
		}
	}
	flush()
	return fields
}

// ExtractKeyValuePairs pulls "key: value" lines out of a free-form
// comment. It is a cheap first pass before the model-based extractor;
// lines inside fenced code blocks are skipped since logs are full of
// colons that are not field assignments.
func ExtractKeyValuePairs(body string) map[string]string {
	fields := map[string]string{}
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := keyValueRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := NormalizeKey(m[1])
		value := strings.TrimSpace(m[2])
		if key == "" || value == "" {
			continue
		}
		if _, ok := fields[key]; !ok {
			fields[key] = value
		}
	}
	return fields
}

// MergeFields overlays b on a; on key conflicts b wins. Neither input
// is modified.
func MergeFields(a, b map[string]string) map[string]string {
	merged := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		if strings.TrimSpace(v) == "" {
			continue
		}
		merged[k] = v
	}
	return merged
}
