package orchestrator

import (
	"context"
	"strings"

	"supportbot/internal/issueform"
	"supportbot/internal/model"
)

// resolveCategory picks the ticket's category. An explicit category or
// type field from the issue form wins when it names a configured
// category. Otherwise keyword overlap decides, with the first-listed
// category breaking ties; only a zero score everywhere falls through to
// the model.
func (s *Service) resolveCategory(ctx context.Context, issue model.Issue) (string, error) {
	fields := issueform.ParseForm(issue.Body)
	for _, key := range []string{"category", "type", "issue_type"} {
		if value, ok := fields[key]; ok && s.pack.HasCategory(value) {
			return strings.ToLower(strings.TrimSpace(value)), nil
		}
	}

	if category, ok := s.keywordCategory(issue.Title, issue.Body); ok {
		return category, nil
	}

	classification, err := s.agent.ClassifyCategory(ctx, issue.Title, issue.Body, s.pack.Categories)
	if err != nil {
		return "", err
	}
	return classification.Category, nil
}

func (s *Service) keywordCategory(title, body string) (string, bool) {
	text := strings.ToLower(title + "\n" + body)
	best := ""
	bestScore := 0
	for _, category := range s.pack.Categories {
		count := 0
		for _, keyword := range category.Keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				count++
			}
		}
		// Strict > keeps the first-listed category on ties.
		if count > bestScore {
			best = category.Name
			bestScore = count
		}
	}
	if bestScore == 0 {
		return "", false
	}
	return strings.ToLower(best), true
}
