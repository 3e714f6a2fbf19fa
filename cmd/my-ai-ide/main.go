// my-ai-ide runs an autonomous coding agent against a workspace.
//
// A goal is handed to the agent, which iterates with its tools (file
// access, shell commands, background dev servers) until the work reads as
// complete or a budget runs out. Configuration is loaded from a YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	my-ai-ide -goal "Add a dark mode toggle"
//	my-ai-ide -config ./config.yaml -workspace ./app -goal "Fix the build"
//	my-ai-ide -once -goal "List the project files"
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/techkanna/my-ai-ide/agentloop"
	"github.com/techkanna/my-ai-ide/autoloop"
	"github.com/techkanna/my-ai-ide/capability"
	"github.com/techkanna/my-ai-ide/config"
	"github.com/techkanna/my-ai-ide/llmclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// options are the parsed command-line arguments.
type options struct {
	configPath string
	workspace  string
	goal       string
	once       bool
}

// parseArgs parses the argument list by hand so run stays free of
// flag-package globals.
func parseArgs(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("-config requires a path")
			}
			i++
			opts.configPath = args[i]
		case "-workspace":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("-workspace requires a directory")
			}
			i++
			opts.workspace = args[i]
		case "-goal":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("-goal requires text")
			}
			i++
			opts.goal = args[i]
		case "-once":
			opts.once = true
		default:
			return opts, fmt.Errorf("unknown argument %q", args[i])
		}
	}
	if strings.TrimSpace(opts.goal) == "" {
		return opts, fmt.Errorf("a -goal is required")
	}
	return opts, nil
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if path, err := config.FindConfig(opts.configPath); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	} else if opts.configPath != "" {
		// An explicit path that does not resolve is an error; silent
		// fallback to defaults would hide a typo.
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	workspaceDir := cfg.Workspace.Path
	if opts.workspace != "" {
		workspaceDir = opts.workspace
	}
	ws := capability.NewWorkspace(workspaceDir)
	if err := ws.Init(); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	logger.Info("workspace ready", "root", ws.Root())

	pm := capability.NewProcessManager(ws)
	defer func() {
		if err := pm.StopAll(); err != nil {
			logger.Warn("stopping background processes", "error", err)
		}
	}()

	router := agentloop.NewRouter()
	capability.RegisterFileTools(router, ws)
	capability.RegisterCommandTools(router, ws, capability.CommandConfig{
		DefaultTimeoutMs: cfg.ShellExec.DefaultTimeoutMs,
		MaxTimeoutMs:     cfg.ShellExec.MaxTimeoutMs,
	})
	capability.RegisterProcessTools(router, pm)

	client := llmclient.NewClientFromEnv()
	defer client.Close()

	loop := agentloop.NewLoop(client, router, agentloop.LoopConfig{
		MaxRounds:         cfg.Agent.MaxRounds,
		Model:             cfg.Model.Name,
		Provider:          cfg.Model.Provider,
		ExtraInstructions: cfg.Agent.ExtraInstructions,
		DetectRepetition:  cfg.Agent.DetectRepetition,
		RepetitionWindow:  cfg.Agent.RepetitionWindow,
	}, logger)
	defer loop.Close()

	if opts.once {
		result, err := loop.Run(ctx, opts.goal, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, result.FinalMessage)
		logger.Info("session finished", "rounds", result.Iterations, "tool_calls", len(result.ToolCalls))
		return nil
	}

	runner := autoloop.NewRunner(loop, router, autoloop.Config{
		MaxCycles:          cfg.Autoloop.MaxCycles,
		DevServerCommand:   cfg.Autoloop.DevServerCommand,
		DevServerDir:       cfg.Autoloop.DevServerDir,
		PreviewURL:         cfg.Autoloop.PreviewURL,
		SuccessCriteria:    cfg.Autoloop.SuccessCriteria,
		CheckInterval:      cfg.Autoloop.CheckInterval,
		CompletionKeywords: cfg.Autoloop.CompletionKeywords,
	}, logger)

	outcome := runner.Run(ctx, opts.goal)
	fmt.Fprintln(stdout, outcome.FinalMessage)
	logger.Info("run finished",
		"success", outcome.Success,
		"cycles", outcome.Iterations,
		"tool_calls", len(outcome.ToolCalls))

	if !outcome.Success {
		return fmt.Errorf("goal not reached after %d cycles", outcome.Iterations)
	}
	return nil
}
