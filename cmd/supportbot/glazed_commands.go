package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"

	"supportbot/internal/agent"
	"supportbot/internal/model"
	"supportbot/internal/orchestrator"
	"supportbot/internal/policy"
	"supportbot/internal/server"
	"supportbot/internal/statestore"
	"supportbot/internal/tracker"
)

func envOr(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func loadPack(dir string) (policy.Pack, error) {
	pack, _, err := policy.Load(dir)
	if err != nil {
		return policy.Pack{}, err
	}
	if username := envOr("SUPPORTBOT_BOT_USERNAME"); username != "" {
		pack.Bot.Username = username
	}
	return pack, nil
}

func buildService(packDir string, logger *log.Logger) (*orchestrator.Service, error) {
	pack, err := loadPack(packDir)
	if err != nil {
		return nil, err
	}
	token := envOr("SUPPORTBOT_GITHUB_TOKEN", "GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("SUPPORTBOT_GITHUB_TOKEN (or GITHUB_TOKEN) is required")
	}
	apiKey := envOr("SUPPORTBOT_OPENAI_API_KEY", "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("SUPPORTBOT_OPENAI_API_KEY (or OPENAI_API_KEY) is required")
	}

	trackerOpts := []tracker.Option{}
	if baseURL := envOr("SUPPORTBOT_GITHUB_API_URL"); baseURL != "" {
		trackerOpts = append(trackerOpts, tracker.WithBaseURL(baseURL))
	}
	agentOpts := []agent.Option{}
	if baseURL := envOr("SUPPORTBOT_OPENAI_BASE_URL"); baseURL != "" {
		agentOpts = append(agentOpts, agent.WithBaseURL(baseURL))
	}
	if modelName := envOr("SUPPORTBOT_OPENAI_MODEL"); modelName != "" {
		agentOpts = append(agentOpts, agent.WithModel(modelName))
	}

	return orchestrator.New(
		pack,
		tracker.New(token, trackerOpts...),
		agent.New(apiKey, agentOpts...),
		orchestrator.WithLogger(logger),
	)
}

type processGlazedCommand struct {
	*cmds.CommandDescription
}

type processSettings struct {
	Event   string `glazed.parameter:"event"`
	Payload string `glazed.parameter:"payload"`
	Pack    string `glazed.parameter:"pack"`
}

func newProcessGlazedCommand() (*processGlazedCommand, error) {
	return &processGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"process",
			cmds.WithShort("Process a single tracker event"),
			cmds.WithLong("Run one triage pass for an event payload, the way a CI-triggered invocation would."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"event",
					parameters.ParameterTypeString,
					parameters.WithHelp("Event name (issues or issue_comment)"),
					parameters.WithRequired(true),
				),
				parameters.NewParameterDefinition(
					"payload",
					parameters.ParameterTypeString,
					parameters.WithHelp("Path to the event payload JSON, or - for stdin"),
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

func (c *processGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &processSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}

	var payload []byte
	var err error
	if settings.Payload == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(settings.Payload)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	event, err := model.ParseEvent(settings.Event, payload)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "", 0)
	service, err := buildService(settings.Pack, logger)
	if err != nil {
		return err
	}
	outcome, err := service.ProcessEvent(ctx, event)
	if err != nil {
		return err
	}
	fmt.Printf("Outcome: %s", outcome.Action)
	if outcome.Reason != "" {
		fmt.Printf(" (%s)", outcome.Reason)
	}
	fmt.Println()
	return nil
}

var _ cmds.BareCommand = &processGlazedCommand{}

type serveGlazedCommand struct {
	*cmds.CommandDescription
}

type serveSettings struct {
	Addr string `glazed.parameter:"addr"`
	Pack string `glazed.parameter:"pack"`
}

func newServeGlazedCommand() (*serveGlazedCommand, error) {
	return &serveGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"serve",
			cmds.WithShort("Run the webhook server"),
			cmds.WithLong("Listen for tracker webhooks and process each delivery, serialized per ticket."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"addr",
					parameters.ParameterTypeString,
					parameters.WithHelp("Listen address"),
					parameters.WithDefault(":8080"),
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

func (c *serveGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &serveSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}

	logger := log.New(os.Stdout, "", 0)
	service, err := buildService(settings.Pack, logger)
	if err != nil {
		return err
	}
	runtime, err := server.NewRuntime(service, server.Options{
		Addr:          settings.Addr,
		WebhookSecret: envOr("SUPPORTBOT_WEBHOOK_SECRET"),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return runtime.Run(runCtx)
}

var _ cmds.BareCommand = &serveGlazedCommand{}

type packInitGlazedCommand struct {
	*cmds.CommandDescription
}

type packInitSettings struct {
	Dir string `glazed.parameter:"dir"`
}

func newPackInitGlazedCommand() (*packInitGlazedCommand, error) {
	return &packInitGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"pack-init",
			cmds.WithShort("Write the default spec pack"),
			cmds.WithLong("Create the default spec pack (categories, checklists, routing, playbooks) at the target directory."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"dir",
					parameters.ParameterTypeString,
					parameters.WithHelp("Spec pack directory"),
					parameters.WithDefault(policy.DefaultPackDir),
				),
			),
		),
	}, nil
}

func (c *packInitGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	settings := &packInitSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	if err := policy.SaveDefault(settings.Dir); err != nil {
		return err
	}
	fmt.Printf("Wrote default spec pack to %s\n", settings.Dir)
	return nil
}

var _ cmds.BareCommand = &packInitGlazedCommand{}

type stateGlazedCommand struct {
	*cmds.CommandDescription
}

type stateSettings struct {
	File string `glazed.parameter:"file"`
}

func newStateGlazedCommand() (*stateGlazedCommand, error) {
	return &stateGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"state",
			cmds.WithShort("Decode the state marker from a comment body"),
			cmds.WithLong("Read a comment body from a file (or stdin with -) and print the embedded conversation state."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"file",
					parameters.ParameterTypeString,
					parameters.WithHelp("Path to a file holding the comment body, or - for stdin"),
					parameters.WithRequired(true),
				),
			),
		),
	}, nil
}

func (c *stateGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	settings := &stateSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}

	var body []byte
	var err error
	if settings.File == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(settings.File)
	}
	if err != nil {
		return fmt.Errorf("read comment body: %w", err)
	}

	state, ok := statestore.Decode(string(body))
	if !ok {
		return fmt.Errorf("no decodable state marker in input")
	}
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var _ cmds.BareCommand = &stateGlazedCommand{}
