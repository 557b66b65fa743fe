package model

import "strings"

type CommandKind string

const (
	CommandNone     CommandKind = ""
	CommandDiagnose CommandKind = "diagnose"
	CommandStop     CommandKind = "stop"
)

// Command is the closed set of slash commands recognized at the start of a
// trimmed comment body. Anything else is ordinary conversation content.
type Command struct {
	Kind CommandKind
	Args string
}

func ParseCommand(body string) Command {
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "/diagnose") {
		return Command{
			Kind: CommandDiagnose,
			Args: strings.TrimSpace(trimmed[len("/diagnose"):]),
		}
	}
	if strings.HasPrefix(lower, "/stop") || strings.HasPrefix(lower, "/no-questions") {
		return Command{Kind: CommandStop}
	}
	return Command{Kind: CommandNone}
}
