package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventIssues       = "issues"
	EventIssueComment = "issue_comment"
)

type ChangeFrom struct {
	From string `json:"from"`
}

// Changes mirrors the "changes" object delivered on edited events; a nil
// member means that part of the issue was not touched.
type Changes struct {
	Title *ChangeFrom `json:"title,omitempty"`
	Body  *ChangeFrom `json:"body,omitempty"`
}

type Event struct {
	Name       string
	Action     string     `json:"action"`
	Issue      Issue      `json:"issue"`
	Repository Repository `json:"repository"`
	Comment    *Comment   `json:"comment,omitempty"`
	Changes    *Changes   `json:"changes,omitempty"`
}

// RelevantEvent reports whether the named tracker event participates in
// triage at all. Everything else is dropped before parsing.
func RelevantEvent(name string) bool {
	switch strings.TrimSpace(name) {
	case EventIssues, EventIssueComment:
		return true
	default:
		return false
	}
}

func ParseEvent(name string, payload []byte) (Event, error) {
	name = strings.TrimSpace(name)
	if !RelevantEvent(name) {
		return Event{}, fmt.Errorf("unsupported event %q", name)
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("parse %s event payload: %w", name, err)
	}
	event.Name = name
	if event.Issue.Number <= 0 {
		return Event{}, fmt.Errorf("event payload has no issue number")
	}
	if strings.TrimSpace(event.Repository.Owner.Login) == "" || strings.TrimSpace(event.Repository.Name) == "" {
		return Event{}, fmt.Errorf("event payload has no repository")
	}
	if name == EventIssueComment && event.Comment == nil {
		return Event{}, fmt.Errorf("issue_comment event payload has no comment")
	}
	return event, nil
}
