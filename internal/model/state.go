package model

import (
	"strings"
	"time"
)

// ConversationState is the single durable record for a ticket's triage
// conversation. It has no home of its own: it travels embedded in bot
// comments and is reconstructed from the thread on every run, so every
// field the control flow reads or writes must be serialized here.
type ConversationState struct {
	Category            string         `json:"category"`
	LoopCount           int            `json:"loop_count"`
	AskedFields         []string       `json:"asked_fields"`
	EditCount           int            `json:"edit_count"`
	LastProcessedBody   string         `json:"last_processed_body,omitempty"`
	OptedOutUsers       []string       `json:"opted_out_users,omitempty"`
	SubIssueUsers       map[string]int `json:"sub_issue_users,omitempty"`
	CurrentSubIssueUser string         `json:"current_sub_issue_user,omitempty"`
	CompletenessScore   int            `json:"completeness_score"`
	IsActionable        bool           `json:"is_actionable"`
	IsFinalized         bool           `json:"is_finalized"`
	FinalizedAt         *time.Time     `json:"finalized_at,omitempty"`
	LastUpdated         time.Time      `json:"last_updated"`
}

func NewConversationState(category string, now time.Time) *ConversationState {
	return &ConversationState{
		Category:    category,
		AskedFields: []string{},
		LastUpdated: now.UTC(),
	}
}

func normalizeUser(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *ConversationState) IsOptedOut(username string) bool {
	needle := normalizeUser(username)
	for _, user := range s.OptedOutUsers {
		if normalizeUser(user) == needle {
			return true
		}
	}
	return false
}

func (s *ConversationState) AddOptOut(username string) {
	if s.IsOptedOut(username) {
		return
	}
	s.OptedOutUsers = append(s.OptedOutUsers, normalizeUser(username))
}

func (s *ConversationState) ClearOptOut(username string) {
	needle := normalizeUser(username)
	kept := s.OptedOutUsers[:0]
	for _, user := range s.OptedOutUsers {
		if normalizeUser(user) != needle {
			kept = append(kept, user)
		}
	}
	s.OptedOutUsers = kept
}

func (s *ConversationState) IsTrackedSubIssueUser(username string) bool {
	if s.SubIssueUsers == nil {
		return false
	}
	_, ok := s.SubIssueUsers[normalizeUser(username)]
	return ok
}

// TrackSubIssueUser registers a secondary participant at round zero. Already
// tracked users keep their accumulated round count.
func (s *ConversationState) TrackSubIssueUser(username string) {
	if s.SubIssueUsers == nil {
		s.SubIssueUsers = map[string]int{}
	}
	key := normalizeUser(username)
	if _, ok := s.SubIssueUsers[key]; !ok {
		s.SubIssueUsers[key] = 0
	}
}

func (s *ConversationState) SubIssueRound(username string) int {
	if s.SubIssueUsers == nil {
		return 0
	}
	return s.SubIssueUsers[normalizeUser(username)]
}

// ActiveRound returns the round counter that governs the in-progress run:
// the active sub-issue participant's round if one is set, the original
// author's loop count otherwise.
func (s *ConversationState) ActiveRound() int {
	if strings.TrimSpace(s.CurrentSubIssueUser) != "" {
		return s.SubIssueRound(s.CurrentSubIssueUser)
	}
	return s.LoopCount
}

func (s *ConversationState) IncrementActiveRound() {
	if strings.TrimSpace(s.CurrentSubIssueUser) != "" {
		if s.SubIssueUsers == nil {
			s.SubIssueUsers = map[string]int{}
		}
		s.SubIssueUsers[normalizeUser(s.CurrentSubIssueUser)]++
		return
	}
	s.LoopCount++
}

// AppendAskedFields keeps askedFields append-only and duplicate-free.
func (s *ConversationState) AppendAskedFields(fields []string) {
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		exists := false
		for _, asked := range s.AskedFields {
			if asked == field {
				exists = true
				break
			}
		}
		if !exists {
			s.AskedFields = append(s.AskedFields, field)
		}
	}
}

func (s *ConversationState) HasAsked(field string) bool {
	for _, asked := range s.AskedFields {
		if asked == field {
			return true
		}
	}
	return false
}

func (s *ConversationState) Finalize(now time.Time) {
	s.IsFinalized = true
	at := now.UTC()
	s.FinalizedAt = &at
	s.LastUpdated = at
}
