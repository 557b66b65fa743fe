package agent

import (
	"fmt"
	"sort"
	"strings"

	"supportbot/internal/policy"
)

func classifyPrompt(title, body string, categories []policy.Category) (string, string) {
	var b strings.Builder
	b.WriteString("You triage support issues for a software project. ")
	b.WriteString("Classify the issue into exactly one of these categories:\n\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "- %s (signals: %s)\n", category.Name, strings.Join(category.Keywords, ", "))
	}
	b.WriteString("\nRespond with JSON: {\"category\": string, \"confidence\": number 0..1, \"reasoning\": string}. ")
	b.WriteString("The category must be one of the listed names, verbatim.")

	user := fmt.Sprintf("Title: %s\n\nBody:\n%s", title, body)
	return b.String(), user
}

func extractPrompt(text string, fields []string) (string, string) {
	system := "You extract structured facts from support issue text. " +
		"For each requested field return the value verbatim from the text, or null when the text does not contain it. " +
		"Never invent, summarize, or normalize values. " +
		"Respond with a single JSON object keyed by field name."
	user := fmt.Sprintf("Fields: %s\n\nText:\n%s", strings.Join(fields, ", "), text)
	return system, user
}

func followUpPrompt(category string, missing, alreadyAsked []string, playbook, conversation string) (string, string) {
	var b strings.Builder
	b.WriteString("You write follow-up questions for a support issue so an engineer can act on it. ")
	b.WriteString("Ask only about the listed missing fields, one clear question per field, in plain language. ")
	b.WriteString("Do not repeat questions that were already asked. ")
	b.WriteString("Never ask the user to share credentials, tokens, passwords, or other secrets.\n")
	if playbook != "" {
		b.WriteString("\nTriage playbook for this category:\n")
		b.WriteString(playbook)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with JSON: {\"questions\": [{\"field\": string, \"question\": string, \"why_needed\": string}]}.")

	var u strings.Builder
	fmt.Fprintf(&u, "Category: %s\n", category)
	fmt.Fprintf(&u, "Missing fields: %s\n", strings.Join(missing, ", "))
	if len(alreadyAsked) > 0 {
		fmt.Fprintf(&u, "Already asked: %s\n", strings.Join(alreadyAsked, ", "))
	}
	if conversation != "" {
		fmt.Fprintf(&u, "\nConversation so far:\n%s\n", conversation)
	}
	return b.String(), u.String()
}

func briefPrompt(req BriefRequest) (string, string) {
	var b strings.Builder
	b.WriteString("You summarize a triaged support issue into a brief for the engineer who will work on it. ")
	b.WriteString("Use only facts present in the issue; cite evidence verbatim. ")
	if req.Playbook != "" {
		b.WriteString("\nTriage playbook for this category:\n")
		b.WriteString(req.Playbook)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with JSON: {\"summary\": string, \"symptoms\": [string], \"repro_steps\": [string], ")
	b.WriteString("\"environment\": {string: string}, \"key_evidence\": [string], \"next_steps\": [string]}.")

	var u strings.Builder
	fmt.Fprintf(&u, "Category: %s\n", req.Category)
	fmt.Fprintf(&u, "Title: %s\n\nConversation:\n%s\n", req.Title, req.Conversation)
	if len(req.Fields) > 0 {
		u.WriteString("\nExtracted fields:\n")
		keys := make([]string, 0, len(req.Fields))
		for k := range req.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&u, "- %s: %s\n", k, req.Fields[k])
		}
	}
	if len(req.Duplicates) > 0 {
		u.WriteString("\nPossibly related issues:\n")
		for _, dup := range req.Duplicates {
			fmt.Fprintf(&u, "- #%d: %s\n", dup.IssueNumber, dup.SimilarityReason)
		}
	}
	if req.RepoDocs != "" {
		fmt.Fprintf(&u, "\nProject documentation excerpt:\n%s\n", req.RepoDocs)
	}
	return b.String(), u.String()
}
