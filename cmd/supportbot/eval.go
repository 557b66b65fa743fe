package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"

	"supportbot/internal/agent"
	"supportbot/internal/issueform"
	"supportbot/internal/model"
	"supportbot/internal/policy"
	"supportbot/internal/redact"
	"supportbot/internal/score"
)

// evalScenario is one recorded issue plus the expected triage result.
type evalScenario struct {
	Name     string       `json:"name"`
	Issue    model.Issue  `json:"issue"`
	Expected evalExpected `json:"expected"`
}

type evalExpected struct {
	Category            string   `json:"category"`
	ShouldBeActionable  bool     `json:"should_be_actionable"`
	ShouldExtractFields []string `json:"should_extract_fields"`
}

type evalGlazedCommand struct {
	*cmds.CommandDescription
}

type evalSettings struct {
	Scenarios string `glazed.parameter:"scenarios"`
	Pack      string `glazed.parameter:"pack"`
}

func newEvalGlazedCommand() (*evalGlazedCommand, error) {
	return &evalGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"eval",
			cmds.WithShort("Replay triage scenarios against the live model"),
			cmds.WithLong("Run classification, extraction, and scoring over recorded issue scenarios and compare against expectations. Needs a model API key; makes no tracker calls."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"scenarios",
					parameters.ParameterTypeString,
					parameters.WithHelp("Directory of scenario JSON files"),
					parameters.WithRequired(true),
				),
				parameters.NewParameterDefinition(
					"pack",
					parameters.ParameterTypeString,
					parameters.WithHelp("Spec pack directory"),
					parameters.WithDefault(policy.DefaultPackDir),
				),
			),
		),
	}, nil
}

func (c *evalGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &evalSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}

	pack, err := loadPack(settings.Pack)
	if err != nil {
		return err
	}
	apiKey := envOr("SUPPORTBOT_OPENAI_API_KEY", "OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("SUPPORTBOT_OPENAI_API_KEY (or OPENAI_API_KEY) is required")
	}
	agentOpts := []agent.Option{}
	if baseURL := envOr("SUPPORTBOT_OPENAI_BASE_URL"); baseURL != "" {
		agentOpts = append(agentOpts, agent.WithBaseURL(baseURL))
	}
	if modelName := envOr("SUPPORTBOT_OPENAI_MODEL"); modelName != "" {
		agentOpts = append(agentOpts, agent.WithModel(modelName))
	}
	llm := agent.New(apiKey, agentOpts...)
	redactor, err := redact.New(pack.SecretPatterns)
	if err != nil {
		return err
	}

	scenarios, err := loadScenarios(settings.Scenarios)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenario files in %s", settings.Scenarios)
	}

	passed := 0
	for _, scenario := range scenarios {
		ok, err := runScenario(ctx, pack, llm, redactor, scenario)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", scenario.Name, err)
			continue
		}
		if ok {
			passed++
		}
	}
	fmt.Printf("\n%d/%d scenarios passed\n", passed, len(scenarios))
	if passed != len(scenarios) {
		return fmt.Errorf("%d scenario(s) failed", len(scenarios)-passed)
	}
	return nil
}

var _ cmds.BareCommand = &evalGlazedCommand{}

func loadScenarios(dir string) ([]evalScenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	names := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var scenarios []evalScenario
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var scenario evalScenario
		if err := json.Unmarshal(b, &scenario); err != nil {
			return nil, fmt.Errorf("parse scenario %s: %w", name, err)
		}
		if scenario.Name == "" {
			scenario.Name = strings.TrimSuffix(name, ".json")
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

func runScenario(ctx context.Context, pack policy.Pack, llm *agent.Client, redactor *redact.Redactor, scenario evalScenario) (bool, error) {
	issue := scenario.Issue
	text, _ := redactor.Redact(issue.Title + "\n\n" + issue.Body)

	classification, err := llm.ClassifyCategory(ctx, issue.Title, issue.Body, pack.Categories)
	if err != nil {
		return false, err
	}
	category := classification.Category

	checklist, ok := pack.Checklist(category)
	if !ok {
		return false, fmt.Errorf("no checklist for category %q", category)
	}
	deterministic := issueform.MergeFields(issueform.ParseForm(text), issueform.ExtractKeyValuePairs(text))
	llmFields, err := llm.ExtractFields(ctx, text, checklist.FieldNames())
	if err != nil {
		return false, err
	}
	fields := issueform.MergeFields(deterministic, llmFields)
	result := score.Completeness(fields, checklist)

	ok = true
	if scenario.Expected.Category != "" && !strings.EqualFold(category, scenario.Expected.Category) {
		fmt.Printf("FAIL %s: category %q, expected %q\n", scenario.Name, category, scenario.Expected.Category)
		ok = false
	}
	if result.IsActionable != scenario.Expected.ShouldBeActionable {
		fmt.Printf("FAIL %s: actionable=%t, expected %t (score %d/%d, missing %v)\n",
			scenario.Name, result.IsActionable, scenario.Expected.ShouldBeActionable,
			result.Score, result.Threshold, result.MissingFields)
		ok = false
	}
	for _, field := range scenario.Expected.ShouldExtractFields {
		if strings.TrimSpace(fields[field]) == "" {
			fmt.Printf("FAIL %s: expected field %q was not extracted\n", scenario.Name, field)
			ok = false
		}
	}

	// Hallucination check: a model-extracted value that never occurs in
	// the issue text is a warning, not a failure.
	lowerText := strings.ToLower(text)
	for field, value := range llmFields {
		if !strings.Contains(lowerText, strings.ToLower(value)) {
			fmt.Printf("WARN %s: extracted %s=%q does not appear verbatim in the issue\n", scenario.Name, field, value)
		}
	}

	if ok {
		fmt.Printf("PASS %s (category=%s score=%d/%d)\n", scenario.Name, category, result.Score, result.Threshold)
	}
	return ok, nil
}
