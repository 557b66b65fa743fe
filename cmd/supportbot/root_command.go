package main

import (
	"fmt"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/spf13/cobra"
)

func executeCLI(args []string) error {
	rootCmd, err := newRootCommand()
	if err != nil {
		return err
	}
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "supportbot",
		Short:         "triage support issues through the tracker comment thread",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printUsage()
			return fmt.Errorf("command is required")
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	defaultHelpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd == rootCmd {
			printUsage()
			return
		}
		defaultHelpFunc(cmd, args)
	})

	commands := []cmds.Command{}

	processCmd, err := newProcessGlazedCommand()
	if err != nil {
		return nil, err
	}
	commands = append(commands, processCmd)

	serveCmd, err := newServeGlazedCommand()
	if err != nil {
		return nil, err
	}
	commands = append(commands, serveCmd)

	packInitCmd, err := newPackInitGlazedCommand()
	if err != nil {
		return nil, err
	}
	commands = append(commands, packInitCmd)

	stateCmd, err := newStateGlazedCommand()
	if err != nil {
		return nil, err
	}
	commands = append(commands, stateCmd)

	evalCmd, err := newEvalGlazedCommand()
	if err != nil {
		return nil, err
	}
	commands = append(commands, evalCmd)

	for _, command := range commands {
		cobraCommand, err := buildGlazedCobraCommand(command)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(cobraCommand)
	}

	return rootCmd, nil
}

func buildGlazedCobraCommand(command cmds.Command) (*cobra.Command, error) {
	return cli.BuildCobraCommand(
		command,
		cli.WithParserConfig(cli.CobraParserConfig{
			ShortHelpLayers: []string{layers.DefaultSlug},
			MiddlewaresFunc: cli.CobraCommandDefaultMiddlewares,
		}),
		cli.WithCobraMiddlewaresFunc(cli.CobraCommandDefaultMiddlewares),
		cli.WithCobraShortHelpLayers(layers.DefaultSlug),
	)
}

func printUsage() {
	fmt.Println("supportbot - triage support issues through the tracker comment thread")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  supportbot process --event issues --payload event.json [--pack .supportbot]")
	fmt.Println("  supportbot serve [--addr :8080] [--pack .supportbot]")
	fmt.Println("  supportbot pack-init [--dir .supportbot]")
	fmt.Println("  supportbot state --file comment.txt")
	fmt.Println("  supportbot eval --scenarios evals/scenarios [--pack .supportbot]")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  SUPPORTBOT_GITHUB_TOKEN   tracker API token (falls back to GITHUB_TOKEN)")
	fmt.Println("  SUPPORTBOT_OPENAI_API_KEY model API key (falls back to OPENAI_API_KEY)")
	fmt.Println("  SUPPORTBOT_BOT_USERNAME   bot account login (default github-actions[bot])")
	fmt.Println("  SUPPORTBOT_WEBHOOK_SECRET webhook HMAC secret for serve")
}
