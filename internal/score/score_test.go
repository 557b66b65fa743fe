package score

import (
	"reflect"
	"testing"

	"supportbot/internal/policy"
)

func bugChecklist(t *testing.T) policy.Checklist {
	t.Helper()
	checklist, ok := policy.Default().Checklist("bug")
	if !ok {
		t.Fatalf("default pack has no bug checklist")
	}
	return checklist
}

func TestCompletenessAllFieldsSatisfied(t *testing.T) {
	fields := map[string]string{
		"version":       "1.2.3",
		"os":            "ubuntu 24.04",
		"error_message": "panic: runtime error: index out of range",
		"repro_steps":   "1. start the server\n2. send an empty request",
	}
	got := Completeness(fields, bugChecklist(t))
	if !got.IsActionable {
		t.Fatalf("expected actionable, got %+v", got)
	}
	if got.Score != 5 {
		t.Fatalf("score = %d, want 5 (repro_steps weighs 2)", got.Score)
	}
	if len(got.MissingFields) != 0 {
		t.Fatalf("missing = %v", got.MissingFields)
	}
}

func TestCompletenessMissingAndInvalidFields(t *testing.T) {
	fields := map[string]string{
		"version":       "latest",
		"os":            "macOS",
		"error_message": "short",
	}
	got := Completeness(fields, bugChecklist(t))
	if got.IsActionable {
		t.Fatalf("expected not actionable: %+v", got)
	}
	want := []string{"version", "error_message", "repro_steps"}
	if !reflect.DeepEqual(got.MissingFields, want) {
		t.Fatalf("missing = %v, want %v", got.MissingFields, want)
	}
	if got.Score != 1 {
		t.Fatalf("score = %d, want 1", got.Score)
	}
}

func TestCompletenessThresholdReachedWithFieldStillMissing(t *testing.T) {
	fields := map[string]string{
		"version":       "1.2.3",
		"error_message": "panic: runtime error: index out of range",
		"repro_steps":   "1. start the server\n2. send an empty request",
	}
	got := Completeness(fields, bugChecklist(t))
	if got.Score != 4 || got.Threshold != 4 {
		t.Fatalf("score = %d threshold = %d, want 4/4", got.Score, got.Threshold)
	}
	if !reflect.DeepEqual(got.MissingFields, []string{"os"}) {
		t.Fatalf("missing = %v, want [os]", got.MissingFields)
	}
	if !got.IsActionable {
		t.Fatalf("meeting the threshold must be actionable, got %+v", got)
	}
}

func TestCompletenessEmptyValueCountsAsMissing(t *testing.T) {
	checklist := policy.Checklist{
		Threshold:      1,
		RequiredFields: []policy.FieldSpec{{Name: "topic"}},
	}
	got := Completeness(map[string]string{"topic": "   "}, checklist)
	if got.IsActionable || got.Score != 0 {
		t.Fatalf("got %+v", got)
	}
}
