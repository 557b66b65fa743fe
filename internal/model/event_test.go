package model

import "testing"

func TestParseEventIssueComment(t *testing.T) {
	payload := []byte(`{
		"action": "created",
		"issue": {"number": 3, "title": "t", "body": "b", "user": {"login": "alice"}},
		"repository": {"name": "widget", "owner": {"login": "acme"}},
		"comment": {"id": 11, "body": "hello", "user": {"login": "bob"}}
	}`)
	event, err := ParseEvent("issue_comment", payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Name != EventIssueComment || event.Comment.User.Login != "bob" {
		t.Fatalf("event = %+v", event)
	}
}

func TestParseEventEditedCarriesChanges(t *testing.T) {
	payload := []byte(`{
		"action": "edited",
		"issue": {"number": 3, "user": {"login": "alice"}},
		"repository": {"name": "widget", "owner": {"login": "acme"}},
		"changes": {"body": {"from": "old body"}}
	}`)
	event, err := ParseEvent("issues", payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Changes == nil || event.Changes.Body == nil || event.Changes.Body.From != "old body" {
		t.Fatalf("changes = %+v", event.Changes)
	}
	if event.Changes.Title != nil {
		t.Fatalf("title change should be nil")
	}
}

func TestParseEventRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name    string
		event   string
		payload string
	}{
		{"unknown event", "push", `{}`},
		{"no issue number", "issues", `{"action":"opened","repository":{"name":"w","owner":{"login":"a"}}}`},
		{"no repository", "issues", `{"action":"opened","issue":{"number":1}}`},
		{"comment event without comment", "issue_comment", `{"action":"created","issue":{"number":1},"repository":{"name":"w","owner":{"login":"a"}}}`},
		{"garbage", "issues", `{{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseEvent(tc.event, []byte(tc.payload)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
