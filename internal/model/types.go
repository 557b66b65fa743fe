package model

import "time"

type User struct {
	Login string `json:"login"`
}

type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state,omitempty"`
	User   User   `json:"user"`
}

type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         User   `json:"owner"`
	DefaultBranch string `json:"default_branch"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueRef is the slim shape returned by issue search, enough to cite a
// potential duplicate without fetching the full issue.
type IssueRef struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

type FollowUpQuestion struct {
	Field     string `json:"field"`
	Question  string `json:"question"`
	WhyNeeded string `json:"why_needed"`
}

type DuplicateReference struct {
	IssueNumber      int    `json:"issue_number"`
	SimilarityReason string `json:"similarity_reason"`
}

type EngineerBrief struct {
	Summary            string               `json:"summary"`
	Symptoms           []string             `json:"symptoms"`
	ReproSteps         []string             `json:"repro_steps"`
	Environment        map[string]string    `json:"environment"`
	KeyEvidence        []string             `json:"key_evidence"`
	NextSteps          []string             `json:"next_steps"`
	PossibleDuplicates []DuplicateReference `json:"possible_duplicates"`
}

type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}
