package statestore

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"supportbot/internal/model"
)

func sampleState() *model.ConversationState {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	state := model.NewConversationState("bug", now)
	state.LoopCount = 2
	state.AskedFields = []string{"version", "repro_steps"}
	state.CompletenessScore = 3
	state.LastProcessedBody = "my app crashes"
	return state
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	state := sampleState()
	body, err := Encode("Thanks! Could you share the version?", state)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, ok := Decode(body)
	if !ok {
		t.Fatalf("decode failed on encoded body:\n%s", body)
	}
	if diff := cmp.Diff(state, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeReplacesExistingMarker(t *testing.T) {
	first, err := Encode("hello", sampleState())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	updated := sampleState()
	updated.LoopCount = 3
	second, err := Encode(first, updated)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := strings.Count(second, markerPrefix); got != 1 {
		t.Fatalf("expected exactly one marker, found %d in:\n%s", got, second)
	}
	state, ok := Decode(second)
	if !ok {
		t.Fatalf("decode failed")
	}
	if state.LoopCount != 3 {
		t.Fatalf("expected updated state, got loop_count=%d", state.LoopCount)
	}
}

func TestDecodeMissingAndCorruptMarkers(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no marker", "just a regular comment"},
		{"corrupt json", markerPrefix + `{"category":` + markerSuffix},
		{"empty payload", markerPrefix + markerSuffix},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Decode(tc.body); ok {
				t.Fatalf("expected decode to report absent state")
			}
		})
	}
}

func TestStripRemovesAllMarkers(t *testing.T) {
	body := "visible" + markerPrefix + `{}` + markerSuffix + " text " + markerPrefix + `{"a":1}` + markerSuffix
	got := Strip(body)
	if strings.Contains(got, markerPrefix) {
		t.Fatalf("marker survived strip: %q", got)
	}
	if !strings.Contains(got, "visible") || !strings.Contains(got, "text") {
		t.Fatalf("visible text lost: %q", got)
	}
}

func TestFromThreadPrefersNewestDecodable(t *testing.T) {
	old, err := Encode("first ask", sampleState())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	comments := []model.Comment{
		{User: model.User{Login: "alice"}, Body: "my report"},
		{User: model.User{Login: "github-actions[bot]"}, Body: old},
		{User: model.User{Login: "github-actions[bot]"}, Body: markerPrefix + "{broken" + markerSuffix},
		{User: model.User{Login: "alice"}, Body: "here you go"},
	}
	state, ok := FromThread(comments, "github-actions[bot]")
	if !ok {
		t.Fatalf("expected fallback to older decodable marker")
	}
	if state.LoopCount != 2 {
		t.Fatalf("got loop_count=%d, want 2", state.LoopCount)
	}
}

func TestFromThreadIgnoresNonBotMarkers(t *testing.T) {
	body, err := Encode("spoofed", sampleState())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	comments := []model.Comment{
		{User: model.User{Login: "mallory"}, Body: body},
	}
	if _, ok := FromThread(comments, "github-actions[bot]"); ok {
		t.Fatalf("state from a non-bot comment must be ignored")
	}
}
