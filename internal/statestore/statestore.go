// Package statestore embeds conversation state into issue comments as a
// hidden HTML marker and reconstructs it from the comment thread. The
// thread itself is the database; there is no store behind it.
package statestore

import (
	"encoding/json"
	"regexp"
	"strings"

	"supportbot/internal/model"
)

const (
	markerPrefix = "<!-- supportbot_state:"
	markerSuffix = " -->"
)

// Non-greedy so a body with two markers (which Encode never produces,
// but a human edit could) splits at the first suffix.
var markerRe = regexp.MustCompile(`(?s)<!-- supportbot_state:(.*?) -->`)

// Encode strips any existing markers from body and appends exactly one
// marker carrying state, separated from the visible text by a blank line.
func Encode(body string, state *model.ConversationState) (string, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	stripped := strings.TrimRight(Strip(body), "\n")
	return stripped + "\n\n" + markerPrefix + string(b) + markerSuffix, nil
}

// Decode extracts state from a comment body. The second return is false
// when no marker is present or the marker's payload does not parse; a
// corrupt marker is treated as absent, never as an error.
func Decode(body string) (*model.ConversationState, bool) {
	m := markerRe.FindStringSubmatch(body)
	if m == nil {
		return nil, false
	}
	var state model.ConversationState
	if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
		return nil, false
	}
	return &state, true
}

// Strip removes every state marker from body, leaving the visible text.
func Strip(body string) string {
	return markerRe.ReplaceAllString(body, "")
}

// FromThread reconstructs the current state from a comment thread. It
// scans newest-first for a comment authored by botUsername whose marker
// decodes, so a corrupt newest marker falls back to the one before it.
func FromThread(comments []model.Comment, botUsername string) (*model.ConversationState, bool) {
	for i := len(comments) - 1; i >= 0; i-- {
		if !strings.EqualFold(comments[i].User.Login, botUsername) {
			continue
		}
		if state, ok := Decode(comments[i].Body); ok {
			return state, true
		}
	}
	return nil, false
}
