package agent

import (
	"context"
	"fmt"
	"strings"

	"supportbot/internal/model"
	"supportbot/internal/policy"
)

// ClassifyCategory asks the model to pick one of the pack's categories.
// A reply naming an unknown category is an error; the caller decides the
// fallback.
func (c *Client) ClassifyCategory(ctx context.Context, title, body string, categories []policy.Category) (model.Classification, error) {
	system, user := classifyPrompt(title, body, categories)
	schema := jsonSchemaFormat("classification", map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"category", "confidence", "reasoning"},
		"properties": map[string]any{
			"category":   map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number"},
			"reasoning":  map[string]any{"type": "string"},
		},
	})
	reply, err := c.complete(ctx, system, user, schema)
	if err != nil {
		return model.Classification{}, fmt.Errorf("classify: %w", err)
	}
	var classification model.Classification
	if err := decodeJSONReply(reply, &classification); err != nil {
		return model.Classification{}, fmt.Errorf("classify: %w", err)
	}
	classification.Category = strings.ToLower(strings.TrimSpace(classification.Category))
	known := false
	for _, category := range categories {
		if strings.EqualFold(category.Name, classification.Category) {
			known = true
			break
		}
	}
	if !known {
		return model.Classification{}, fmt.Errorf("classify: model returned unknown category %q", classification.Category)
	}
	return classification, nil
}

// ExtractFields pulls the named fields out of text. Null and empty
// values are dropped so the caller's merge never overwrites a known
// value with nothing.
func (c *Client) ExtractFields(ctx context.Context, text string, fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	system, user := extractPrompt(text, fields)
	properties := map[string]any{}
	for _, field := range fields {
		properties[field] = map[string]any{"type": []string{"string", "null"}}
	}
	schema := jsonSchemaFormat("extracted_fields", map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             fields,
		"properties":           properties,
	})
	reply, err := c.complete(ctx, system, user, schema)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	var raw map[string]*string
	if err := decodeJSONReply(reply, &raw); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	extracted := map[string]string{}
	for k, v := range raw {
		if v == nil || strings.TrimSpace(*v) == "" {
			continue
		}
		extracted[k] = strings.TrimSpace(*v)
	}
	return extracted, nil
}

// FollowUpQuestions drafts one question per missing field.
func (c *Client) FollowUpQuestions(ctx context.Context, category string, missing, alreadyAsked []string, playbook, conversation string) ([]model.FollowUpQuestion, error) {
	system, user := followUpPrompt(category, missing, alreadyAsked, playbook, conversation)
	schema := jsonSchemaFormat("follow_up_questions", map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"questions"},
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"field", "question", "why_needed"},
					"properties": map[string]any{
						"field":      map[string]any{"type": "string"},
						"question":   map[string]any{"type": "string"},
						"why_needed": map[string]any{"type": "string"},
					},
				},
			},
		},
	})
	reply, err := c.complete(ctx, system, user, schema)
	if err != nil {
		return nil, fmt.Errorf("follow-up questions: %w", err)
	}
	var payload struct {
		Questions []model.FollowUpQuestion `json:"questions"`
	}
	if err := decodeJSONReply(reply, &payload); err != nil {
		return nil, fmt.Errorf("follow-up questions: %w", err)
	}
	return payload.Questions, nil
}

type BriefRequest struct {
	Category     string
	Title        string
	Conversation string
	Fields       map[string]string
	Playbook     string
	RepoDocs     string
	Duplicates   []model.DuplicateReference
}

// GenerateBrief produces the engineer-facing summary for a finalized
// ticket. Duplicate references inform the prompt; the caller still owns
// the rendered duplicate list so it stays deterministic.
func (c *Client) GenerateBrief(ctx context.Context, req BriefRequest) (model.EngineerBrief, error) {
	system, user := briefPrompt(req)
	schema := jsonSchemaFormat("engineer_brief", map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary", "symptoms", "repro_steps", "environment", "key_evidence", "next_steps"},
		"properties": map[string]any{
			"summary":      map[string]any{"type": "string"},
			"symptoms":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"repro_steps":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"environment":  map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
			"key_evidence": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"next_steps":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	})
	reply, err := c.complete(ctx, system, user, schema)
	if err != nil {
		return model.EngineerBrief{}, fmt.Errorf("brief: %w", err)
	}
	var brief model.EngineerBrief
	if err := decodeJSONReply(reply, &brief); err != nil {
		return model.EngineerBrief{}, fmt.Errorf("brief: %w", err)
	}
	return brief, nil
}
