// Package compose renders the bot's outbound comment bodies. State
// markers are appended by the caller, never here.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"supportbot/internal/model"
)

const StopAck = "Got it! I won't ask you any more questions on this issue."

// FollowUp renders a round of follow-up questions addressed to user.
func FollowUp(user string, questions []model.FollowUpQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi @%s, thanks for the report! To move this forward I need a bit more detail:\n\n", user)
	for _, q := range questions {
		fmt.Fprintf(&b, "- **%s**", q.Question)
		if strings.TrimSpace(q.WhyNeeded) != "" {
			fmt.Fprintf(&b, " (%s)", strings.TrimSpace(q.WhyNeeded))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReply in this thread and I'll pick it up. Use `/stop` if you'd rather not get follow-up questions.")
	return b.String()
}

// Brief renders the engineer-facing summary posted when a ticket is
// finalized.
func Brief(brief model.EngineerBrief, category string) string {
	var b strings.Builder
	b.WriteString("## Triage summary\n\n")
	fmt.Fprintf(&b, "**Category:** %s\n\n", category)
	if brief.Summary != "" {
		b.WriteString(brief.Summary)
		b.WriteString("\n")
	}
	writeSection(&b, "Symptoms", brief.Symptoms)
	writeSection(&b, "Reproduction steps", brief.ReproSteps)
	if len(brief.Environment) > 0 {
		b.WriteString("\n### Environment\n\n")
		keys := make([]string, 0, len(brief.Environment))
		for k := range brief.Environment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, brief.Environment[k])
		}
	}
	writeSection(&b, "Key evidence", brief.KeyEvidence)
	writeSection(&b, "Suggested next steps", brief.NextSteps)
	if len(brief.PossibleDuplicates) > 0 {
		b.WriteString("\n### Possibly related issues\n\n")
		for _, dup := range brief.PossibleDuplicates {
			fmt.Fprintf(&b, "- #%d", dup.IssueNumber)
			if dup.SimilarityReason != "" {
				fmt.Fprintf(&b, " (%s)", dup.SimilarityReason)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// Escalation renders the hand-off comment posted when the question
// budget runs out without the ticket becoming actionable.
func Escalation(missing []string, mentions []string) string {
	var b strings.Builder
	b.WriteString("I wasn't able to collect everything needed to make this issue actionable, ")
	b.WriteString("so I'm handing it to a maintainer for review.\n")
	if len(missing) > 0 {
		b.WriteString("\nStill missing:\n\n")
		for _, field := range missing {
			fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(field, "_", " "))
		}
	}
	if len(mentions) > 0 {
		b.WriteString("\n")
		for i, mention := range mentions {
			if i > 0 {
				b.WriteString(" ")
			}
			if !strings.HasPrefix(mention, "@") {
				b.WriteString("@")
			}
			b.WriteString(mention)
		}
		b.WriteString(" this one needs human eyes.\n")
	}
	return b.String()
}

// RedactionNote flags that credential-looking values were masked before
// any analysis ran.
func RedactionNote(count int) string {
	noun := "values"
	if count == 1 {
		noun = "value"
	}
	return fmt.Sprintf("> Note: %d credential-looking %s in this thread %s redacted before analysis.",
		count, noun, pluralWere(count))
}

func pluralWere(count int) string {
	if count == 1 {
		return "was"
	}
	return "were"
}

// EditNotice acknowledges a meaningful edit to the original report.
func EditNotice() string {
	return "I noticed the issue was updated, so I've re-evaluated it with the new content."
}
