package model

import (
	"testing"
	"time"
)

func TestOptOutNormalizesUsernames(t *testing.T) {
	state := NewConversationState("bug", time.Now())
	state.AddOptOut("  Alice ")
	if !state.IsOptedOut("alice") || !state.IsOptedOut("ALICE") {
		t.Fatalf("opt-out lookup must be case-insensitive: %+v", state.OptedOutUsers)
	}
	state.AddOptOut("alice")
	if len(state.OptedOutUsers) != 1 {
		t.Fatalf("duplicate opt-out entries: %v", state.OptedOutUsers)
	}
	state.ClearOptOut("Alice")
	if state.IsOptedOut("alice") {
		t.Fatalf("opt-out not cleared")
	}
}

func TestSubIssueRounds(t *testing.T) {
	state := NewConversationState("bug", time.Now())
	state.LoopCount = 2

	if state.ActiveRound() != 2 {
		t.Fatalf("no sub-issue user: active round = %d, want loop count", state.ActiveRound())
	}

	state.TrackSubIssueUser("Bob")
	state.CurrentSubIssueUser = "bob"
	if state.ActiveRound() != 0 {
		t.Fatalf("new sub-issue user starts at round 0, got %d", state.ActiveRound())
	}

	state.IncrementActiveRound()
	if state.SubIssueRound("BOB") != 1 {
		t.Fatalf("bob's round = %d, want 1", state.SubIssueRound("BOB"))
	}
	if state.LoopCount != 2 {
		t.Fatalf("author loop count moved: %d", state.LoopCount)
	}

	// Re-tracking must not reset the accumulated round.
	state.TrackSubIssueUser("bob")
	if state.SubIssueRound("bob") != 1 {
		t.Fatalf("re-tracking reset the round counter")
	}
}

func TestAppendAskedFields(t *testing.T) {
	state := NewConversationState("bug", time.Now())
	state.AppendAskedFields([]string{"version", "os"})
	state.AppendAskedFields([]string{"os", "", "error_message"})
	want := []string{"version", "os", "error_message"}
	if len(state.AskedFields) != len(want) {
		t.Fatalf("asked_fields = %v, want %v", state.AskedFields, want)
	}
	for i, field := range want {
		if state.AskedFields[i] != field {
			t.Fatalf("asked_fields = %v, want %v", state.AskedFields, want)
		}
	}
	if !state.HasAsked("os") || state.HasAsked("workload") {
		t.Fatalf("HasAsked broken")
	}
}

func TestFinalizeStampsTime(t *testing.T) {
	state := NewConversationState("bug", time.Now())
	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.FixedZone("CET", 3600))
	state.Finalize(at)
	if !state.IsFinalized {
		t.Fatalf("not finalized")
	}
	if state.FinalizedAt == nil || !state.FinalizedAt.Equal(at) {
		t.Fatalf("finalized_at = %v", state.FinalizedAt)
	}
	if state.FinalizedAt.Location() != time.UTC {
		t.Fatalf("finalized_at must be stored in UTC")
	}
}
