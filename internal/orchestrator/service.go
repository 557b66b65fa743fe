// Package orchestrator drives one triage run per inbound tracker event.
// Each run reads the full comment thread, reconstructs conversation
// state from it, walks the gate pipeline, and posts at most one comment
// carrying the updated state. No state lives between runs.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"supportbot/internal/agent"
	"supportbot/internal/compose"
	"supportbot/internal/issueform"
	"supportbot/internal/model"
	"supportbot/internal/policy"
	"supportbot/internal/redact"
	"supportbot/internal/score"
	"supportbot/internal/statestore"
)

// EscalationLabels are always applied on escalation, on top of any
// category routing.
var EscalationLabels = []string{"needs-maintainer-review", "incomplete-info"}

const (
	maxFollowUpQuestions = 3
	maxDuplicateRefs     = 3
	maxDocExcerptLen     = 3000
)

// Tracker is the slice of the issue-tracker client the pipeline calls.
type Tracker interface {
	ListComments(ctx context.Context, repo model.Repository, number int) ([]model.Comment, error)
	PostComment(ctx context.Context, repo model.Repository, number int, body string) error
	AddLabels(ctx context.Context, repo model.Repository, number int, labels []string) error
	AddAssignees(ctx context.Context, repo model.Repository, number int, assignees []string) error
	GetFileContent(ctx context.Context, repo model.Repository, path string) (string, error)
	SearchIssues(ctx context.Context, repo model.Repository, query string, limit int) ([]model.IssueRef, error)
}

// Agent is the model-assisted side of triage.
type Agent interface {
	ClassifyCategory(ctx context.Context, title, body string, categories []policy.Category) (model.Classification, error)
	ExtractFields(ctx context.Context, text string, fields []string) (map[string]string, error)
	FollowUpQuestions(ctx context.Context, category string, missing, alreadyAsked []string, playbook, conversation string) ([]model.FollowUpQuestion, error)
	GenerateBrief(ctx context.Context, req agent.BriefRequest) (model.EngineerBrief, error)
}

type Action string

const (
	ActionDropped   Action = "dropped"
	ActionStopAck   Action = "stop-acknowledged"
	ActionFollowUp  Action = "follow-up-asked"
	ActionFinalized Action = "finalized"
	ActionEscalated Action = "escalated"
)

type Outcome struct {
	Action Action
	Reason string
	State  *model.ConversationState
}

func dropped(reason string) Outcome {
	return Outcome{Action: ActionDropped, Reason: reason}
}

type Service struct {
	pack     policy.Pack
	tracker  Tracker
	agent    Agent
	redactor *redact.Redactor
	logger   *log.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func New(pack policy.Pack, tracker Tracker, llm Agent, opts ...ServiceOption) (*Service, error) {
	if err := policy.Validate(pack); err != nil {
		return nil, err
	}
	redactor, err := redact.New(pack.SecretPatterns)
	if err != nil {
		return nil, err
	}
	s := &Service{
		pack:     pack,
		tracker:  tracker,
		agent:    llm,
		redactor: redactor,
		logger:   log.New(logDiscard{}, "", 0),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type logDiscard struct{}

func (logDiscard) Write(p []byte) (int, error) { return len(p), nil }

func normalizeUser(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ProcessEvent runs the whole pipeline for one event. A returned error
// means the run aborted before posting anything; the next delivery for
// the ticket retries from the state already embedded in the thread.
func (s *Service) ProcessEvent(ctx context.Context, event model.Event) (Outcome, error) {
	repo := event.Repository
	number := event.Issue.Number
	bot := s.pack.Bot.Username

	switch event.Name {
	case model.EventIssues:
		if event.Action != "opened" && event.Action != "edited" {
			return dropped("issue action " + event.Action), nil
		}
	case model.EventIssueComment:
		if event.Action != "created" {
			return dropped("comment action " + event.Action), nil
		}
		if strings.EqualFold(event.Comment.User.Login, bot) {
			return dropped("own comment"), nil
		}
	default:
		return dropped("event " + event.Name), nil
	}

	comments, err := s.tracker.ListComments(ctx, repo, number)
	if err != nil {
		return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
	}
	state, hasState := statestore.FromThread(comments, bot)

	originalAuthor := normalizeUser(event.Issue.User.Login)
	now := s.now().UTC()

	// Edit gate. Only an edit to the body of an already-tracked ticket
	// passes, and only when the change is meaningful.
	reprocessedEdit := false
	if event.Name == model.EventIssues && event.Action == "edited" && hasState {
		outcome, proceed := s.editGate(event, state)
		if !proceed {
			return outcome, nil
		}
		reprocessedEdit = true
	}

	var cmd model.Command
	actor := originalAuthor
	if event.Name == model.EventIssueComment {
		cmd = model.ParseCommand(event.Comment.Body)
		actor = normalizeUser(event.Comment.User.Login)
	}

	// /stop short-circuits everything, including finalized conversations.
	if cmd.Kind == model.CommandStop {
		if !hasState {
			state = model.NewConversationState("", now)
		}
		state.AddOptOut(actor)
		state.LastUpdated = now
		if err := s.postWithState(ctx, repo, number, compose.StopAck, state); err != nil {
			return Outcome{}, err
		}
		s.logger.Printf("issue=%d actor=%s opted out", number, actor)
		return Outcome{Action: ActionStopAck, State: state}, nil
	}

	isDiagnose := cmd.Kind == model.CommandDiagnose
	tracked := hasState && state.IsTrackedSubIssueUser(actor)

	if hasState && state.IsFinalized {
		if actor != originalAuthor && !isDiagnose && !tracked {
			return dropped("finalized"), nil
		}
	}

	if hasState && state.IsOptedOut(actor) {
		if !isDiagnose {
			return dropped("actor opted out"), nil
		}
		state.ClearOptOut(actor)
	}

	if event.Name == model.EventIssueComment {
		if actor != originalAuthor && !isDiagnose && !tracked {
			return dropped("comment from untracked participant"), nil
		}
	}

	if !hasState {
		state = model.NewConversationState("", now)
		state.LastProcessedBody = event.Issue.Body
	}

	// Actor resolution and /diagnose bookkeeping. A tracked participant
	// or a non-author diagnose issuer becomes the active sub-issue user.
	if tracked {
		state.CurrentSubIssueUser = actor
	}
	if isDiagnose {
		if actor == originalAuthor {
			state.CurrentSubIssueUser = ""
		} else {
			state.TrackSubIssueUser(actor)
			state.CurrentSubIssueUser = actor
		}
	}
	if isDiagnose && state.ActiveRound() >= s.pack.Bot.RoundCap {
		return dropped("diagnose round budget exhausted"), nil
	}

	if strings.TrimSpace(state.Category) == "" {
		category, err := s.resolveCategory(ctx, event.Issue)
		if err != nil {
			return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
		}
		state.Category = category
	}
	checklist, ok := s.pack.Checklist(state.Category)
	if !ok {
		return Outcome{}, fmt.Errorf("issue #%d: no checklist for category %q", number, state.Category)
	}

	targetUser := originalAuthor
	if strings.TrimSpace(state.CurrentSubIssueUser) != "" {
		targetUser = state.CurrentSubIssueUser
	}

	text := s.relevantText(event, comments, targetUser, originalAuthor)
	redacted, findings := s.redactor.Redact(text)
	if len(findings) > 0 {
		s.logger.Printf("issue=%d redacted %d secret(s)", number, len(findings))
	}

	deterministic := issueform.MergeFields(
		issueform.ParseForm(redacted),
		issueform.ExtractKeyValuePairs(redacted),
	)
	llmFields, err := s.agent.ExtractFields(ctx, redacted, checklist.FieldNames())
	if err != nil {
		return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
	}
	fields := issueform.MergeFields(deterministic, llmFields)

	result := score.Completeness(fields, checklist)
	state.CompletenessScore = result.Score
	state.IsActionable = result.IsActionable
	state.LastUpdated = now
	s.logger.Printf("issue=%d category=%s score=%d/%d missing=%v",
		number, state.Category, result.Score, result.Threshold, result.MissingFields)

	switch {
	case result.IsActionable:
		return s.finalize(ctx, event, state, fields, redacted, now)
	case state.ActiveRound() >= s.pack.Bot.RoundCap:
		return s.escalate(ctx, repo, number, state, result.MissingFields, now)
	default:
		notice := ""
		if reprocessedEdit {
			notice = compose.EditNotice()
		}
		return s.askFollowUp(ctx, repo, number, state, result.MissingFields, targetUser, redacted, notice)
	}
}

// editGate returns (outcome, false) when the run should stop.
func (s *Service) editGate(event model.Event, state *model.ConversationState) (Outcome, bool) {
	if event.Changes == nil || (event.Changes.Title == nil && event.Changes.Body == nil) {
		return dropped("edit changed nothing"), false
	}
	if event.Changes.Body == nil {
		return dropped("title-only edit"), false
	}
	if state.EditCount >= s.pack.Bot.EditCap {
		return dropped("edit budget exhausted"), false
	}
	oldBody := state.LastProcessedBody
	if strings.TrimSpace(oldBody) == "" {
		oldBody = event.Changes.Body.From
	}
	if !MeaningfulEdit(oldBody, event.Issue.Body) {
		return dropped("trivial edit"), false
	}
	state.EditCount++
	state.LastProcessedBody = event.Issue.Body
	return Outcome{}, true
}

// relevantText gathers the text extraction may look at: the ticket body
// plus the target user's own comments, with state markers stripped and
// command prefixes reduced to their arguments. For a sub-issue
// participant the thread splits at their /diagnose, so the brief keeps
// the original report separate from the sub-issue they opened.
func (s *Service) relevantText(event model.Event, comments []model.Comment, targetUser, originalAuthor string) string {
	var parts []string
	if strings.TrimSpace(event.Issue.Title) != "" {
		parts = append(parts, event.Issue.Title)
	}
	if strings.TrimSpace(event.Issue.Body) != "" {
		parts = append(parts, event.Issue.Body)
	}
	subIssue := targetUser != originalAuthor
	sectioned := false
	appendBody := func(body string) {
		body = statestore.Strip(body)
		if cmd := model.ParseCommand(body); cmd.Kind == model.CommandDiagnose {
			body = cmd.Args
			if subIssue && !sectioned {
				if len(parts) > 0 {
					parts = []string{"## Original issue context\n\n" + strings.Join(parts, "\n\n")}
				}
				parts = append(parts, "## Sub-issue from @"+targetUser)
				sectioned = true
			}
		}
		if strings.TrimSpace(body) != "" {
			parts = append(parts, body)
		}
	}
	seenEventComment := false
	for _, comment := range comments {
		if normalizeUser(comment.User.Login) != targetUser {
			continue
		}
		if event.Comment != nil && comment.ID == event.Comment.ID {
			seenEventComment = true
		}
		appendBody(comment.Body)
	}
	if event.Comment != nil && !seenEventComment && normalizeUser(event.Comment.User.Login) == targetUser {
		appendBody(event.Comment.Body)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Service) askFollowUp(ctx context.Context, repo model.Repository, number int, state *model.ConversationState, missing []string, targetUser, conversation, notice string) (Outcome, error) {
	missingToAsk := make([]string, 0, len(missing))
	for _, field := range missing {
		if !state.HasAsked(field) {
			missingToAsk = append(missingToAsk, field)
		}
	}
	if len(missingToAsk) == 0 {
		return Outcome{Action: ActionDropped, Reason: "nothing new to ask", State: state}, nil
	}
	if len(missingToAsk) > maxFollowUpQuestions {
		missingToAsk = missingToAsk[:maxFollowUpQuestions]
	}

	questions, err := s.agent.FollowUpQuestions(ctx, state.Category, missingToAsk, state.AskedFields,
		s.pack.Playbook(state.Category), conversation)
	if err != nil {
		return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
	}
	if len(questions) > maxFollowUpQuestions {
		questions = questions[:maxFollowUpQuestions]
	}
	if len(questions) == 0 {
		return Outcome{Action: ActionDropped, Reason: "no questions generated", State: state}, nil
	}

	state.IncrementActiveRound()
	asked := make([]string, 0, len(questions))
	for _, q := range questions {
		asked = append(asked, q.Field)
	}
	state.AppendAskedFields(asked)

	body := compose.FollowUp(targetUser, questions)
	if notice != "" {
		body = notice + "\n\n" + body
	}
	if err := s.postWithState(ctx, repo, number, body, state); err != nil {
		return Outcome{}, err
	}
	s.logger.Printf("issue=%d asked %d question(s), round=%d", number, len(questions), state.ActiveRound())
	return Outcome{Action: ActionFollowUp, State: state}, nil
}

func (s *Service) escalate(ctx context.Context, repo model.Repository, number int, state *model.ConversationState, missing []string, now time.Time) (Outcome, error) {
	if err := s.tracker.AddLabels(ctx, repo, number, EscalationLabels); err != nil {
		return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
	}
	state.Finalize(now)
	body := compose.Escalation(missing, s.pack.Routing.EscalationMentions)
	if err := s.postWithState(ctx, repo, number, body, state); err != nil {
		return Outcome{}, err
	}
	s.logger.Printf("issue=%d escalated, missing=%v", number, missing)
	return Outcome{Action: ActionEscalated, State: state}, nil
}

func (s *Service) finalize(ctx context.Context, event model.Event, state *model.ConversationState, fields map[string]string, conversation string, now time.Time) (Outcome, error) {
	repo := event.Repository
	number := event.Issue.Number

	// Extracted values get one more scan. The thread text was redacted
	// before extraction, but the model may echo secret-looking values the
	// first pass skipped.
	secretFindings := 0
	for name, value := range fields {
		clean, found := s.redactor.Redact(value)
		if len(found) == 0 {
			continue
		}
		fields[name] = clean
		secretFindings += len(found)
	}

	duplicates, err := s.findDuplicates(ctx, repo, number, fields["error_message"])
	if err != nil {
		return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
	}
	dupRefs := make([]model.DuplicateReference, 0, len(duplicates))
	for _, ref := range duplicates {
		dupRefs = append(dupRefs, model.DuplicateReference{
			IssueNumber:      ref.Number,
			SimilarityReason: ref.Title,
		})
	}
	docs, err := s.repoDocs(ctx, repo)
	if err != nil {
		return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
	}

	brief, err := s.agent.GenerateBrief(ctx, agent.BriefRequest{
		Category:     state.Category,
		Title:        event.Issue.Title,
		Conversation: conversation,
		Fields:       fields,
		Playbook:     s.pack.Playbook(state.Category),
		RepoDocs:     docs,
		Duplicates:   dupRefs,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
	}
	brief.PossibleDuplicates = dupRefs

	if route := s.pack.Routing.RouteFor(state.Category); route != nil {
		if err := s.tracker.AddLabels(ctx, repo, number, route.Labels); err != nil {
			return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
		}
		if err := s.tracker.AddAssignees(ctx, repo, number, route.Assignees); err != nil {
			return Outcome{}, fmt.Errorf("issue #%d: %w", number, err)
		}
	}

	state.IsActionable = true
	state.Finalize(now)
	body := compose.Brief(brief, state.Category)
	if secretFindings > 0 {
		body += "\n" + compose.RedactionNote(secretFindings)
	}
	if err := s.postWithState(ctx, repo, number, body, state); err != nil {
		return Outcome{}, err
	}
	s.logger.Printf("issue=%d finalized category=%s", number, state.Category)
	return Outcome{Action: ActionFinalized, State: state}, nil
}

// findDuplicates searches for related open issues using the longest
// words of the reported error message. Self references are dropped.
func (s *Service) findDuplicates(ctx context.Context, repo model.Repository, number int, errorMessage string) ([]model.IssueRef, error) {
	keywords := searchKeywords(errorMessage)
	if len(keywords) == 0 {
		return nil, nil
	}
	refs, err := s.tracker.SearchIssues(ctx, repo, strings.Join(keywords, " "), maxDuplicateRefs+1)
	if err != nil {
		return nil, err
	}
	filtered := refs[:0]
	for _, ref := range refs {
		if ref.Number == number {
			continue
		}
		filtered = append(filtered, ref)
		if len(filtered) == maxDuplicateRefs {
			break
		}
	}
	return filtered, nil
}

// searchKeywords picks up to three words longer than 4 characters.
func searchKeywords(text string) []string {
	var keywords []string
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, `.,:;"'()[]{}`)
		if len(word) <= 4 {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 3 {
			break
		}
	}
	return keywords
}

// repoDocs pulls README and troubleshooting docs for brief context,
// truncated so prompts stay bounded. Missing files are fine.
func (s *Service) repoDocs(ctx context.Context, repo model.Repository) (string, error) {
	var parts []string
	for _, path := range []string{"README.md", "TROUBLESHOOTING.md"} {
		content, err := s.tracker.GetFileContent(ctx, repo, path)
		if err != nil {
			return "", err
		}
		if content == "" {
			continue
		}
		if len(content) > maxDocExcerptLen {
			content = content[:maxDocExcerptLen]
		}
		parts = append(parts, "## "+path+"\n\n"+content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// postWithState redacts the visible body one more time, embeds the
// state marker, and posts. This is the only write that persists state.
func (s *Service) postWithState(ctx context.Context, repo model.Repository, number int, body string, state *model.ConversationState) error {
	redacted, _ := s.redactor.Redact(body)
	full, err := statestore.Encode(redacted, state)
	if err != nil {
		return fmt.Errorf("issue #%d: encode state: %w", number, err)
	}
	if err := s.tracker.PostComment(ctx, repo, number, full); err != nil {
		return fmt.Errorf("issue #%d: %w", number, err)
	}
	return nil
}
