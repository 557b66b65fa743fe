// Package score evaluates extracted fields against a category checklist.
package score

import (
	"regexp"
	"strings"

	"supportbot/internal/policy"
)

type Result struct {
	Score         int
	Threshold     int
	MissingFields []string
	IsActionable  bool
}

// Completeness scores fields against checklist. Each satisfied field
// contributes its weight (default 1); a field present but failing its
// validator counts as missing. Actionable means the score meets the
// threshold, even when lower-weight fields are still missing.
func Completeness(fields map[string]string, checklist policy.Checklist) Result {
	result := Result{Threshold: checklist.Threshold}
	for _, spec := range checklist.RequiredFields {
		if satisfies(fields, spec) {
			weight := spec.Weight
			if weight <= 0 {
				weight = 1
			}
			result.Score += weight
		} else {
			result.MissingFields = append(result.MissingFields, spec.Name)
		}
	}
	result.IsActionable = result.Score >= result.Threshold
	return result
}

func satisfies(fields map[string]string, spec policy.FieldSpec) bool {
	value, ok := fields[spec.Name]
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if spec.MinLength > 0 && len(value) < spec.MinLength {
		return false
	}
	if spec.Pattern != "" {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil || !re.MatchString(value) {
			return false
		}
	}
	return true
}
