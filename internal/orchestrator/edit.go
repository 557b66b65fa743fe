package orchestrator

import "strings"

// trivialEditThresholdPct is the strict cutoff: an edit is trivial only
// when its change percentage is strictly below this value.
const trivialEditThresholdPct = 5.0

// MeaningfulEdit decides whether an edit to a ticket body warrants
// re-processing. A presence change (empty to non-empty or back) is
// always meaningful. Otherwise both sides are normalized, and a
// byte-equal result means formatting only. The remaining cases compare
// edit distance against the length of the longer side.
func MeaningfulEdit(oldBody, newBody string) bool {
	oldEmpty := strings.TrimSpace(oldBody) == ""
	newEmpty := strings.TrimSpace(newBody) == ""
	if oldEmpty != newEmpty {
		return true
	}
	if oldEmpty && newEmpty {
		return false
	}

	a := normalizeForEdit(oldBody)
	b := normalizeForEdit(newBody)
	if a == b {
		return false
	}

	dist := editDistance(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	changePct := float64(dist) / float64(longest) * 100
	return changePct >= trivialEditThresholdPct
}

func normalizeForEdit(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// editDistance is the classic unit-cost DP with a rolling row.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
