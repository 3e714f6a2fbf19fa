package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/techkanna/my-ai-ide/agentloop"
)

// CommandConfig bounds shell command execution for run_command.
type CommandConfig struct {
	DefaultTimeoutMs int
	MaxTimeoutMs     int
}

// DefaultCommandConfig is used when the caller passes a zero config.
var DefaultCommandConfig = CommandConfig{
	DefaultTimeoutMs: 120000,
	MaxTimeoutMs:     600000,
}

// RegisterFileTools registers the workspace file capabilities on a router.
func RegisterFileTools(r *agentloop.Router, ws *Workspace) {
	r.Register(agentloop.Capability{
		Name:        "read_file",
		Description: "Read a file from the workspace. Returns line-numbered content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the workspace root.",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "1-based line number to start reading from.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of lines to read. Default: 2000.",
				},
			},
			"required": []string{"path"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			path, ok := agentloop.StringArg(args, "path")
			if !ok || path == "" {
				return nil, fmt.Errorf("path is required")
			}
			offset, _ := agentloop.IntArg(args, "offset")
			limit, _ := agentloop.IntArg(args, "limit")
			if limit == 0 {
				limit = 2000
			}
			return ws.ReadFile(path, offset, limit)
		},
	})

	r.Register(agentloop.Capability{
		Name:        "write_file",
		Description: "Write content to a file. Creates the file and parent directories if needed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to write to, relative to the workspace root.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The full file content to write.",
				},
			},
			"required": []string{"path", "content"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			path, ok := agentloop.StringArg(args, "path")
			if !ok || path == "" {
				return nil, fmt.Errorf("path is required")
			}
			content, ok := agentloop.StringArg(args, "content")
			if !ok {
				return nil, fmt.Errorf("content is required")
			}
			if err := ws.WriteFile(path, content); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
		},
	})

	r.Register(agentloop.Capability{
		Name:        "edit_file",
		Description: "Replace an exact string occurrence in a file. The old_string must be unique unless replace_all is true.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to edit.",
				},
				"old_string": map[string]any{
					"type":        "string",
					"description": "Exact text to find in the file.",
				},
				"new_string": map[string]any{
					"type":        "string",
					"description": "Replacement text.",
				},
				"replace_all": map[string]any{
					"type":        "boolean",
					"description": "Replace all occurrences. Default: false.",
				},
			},
			"required": []string{"path", "old_string", "new_string"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			path, ok := agentloop.StringArg(args, "path")
			if !ok || path == "" {
				return nil, fmt.Errorf("path is required")
			}
			oldString, ok := agentloop.StringArg(args, "old_string")
			if !ok {
				return nil, fmt.Errorf("old_string is required")
			}
			newString, _ := agentloop.StringArg(args, "new_string")
			replaceAll, _ := agentloop.BoolArg(args, "replace_all")

			replaced, err := ws.EditFile(path, oldString, newString, replaceAll)
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, path), nil
		},
	})

	r.Register(agentloop.Capability{
		Name:        "list_directory",
		Description: "List the entries of a directory in the workspace.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory to list. Default: workspace root.",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			path, _ := agentloop.StringArg(args, "path")
			if path == "" {
				path = "."
			}
			entries, err := ws.ListDirectory(path)
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				return "(empty directory)", nil
			}
			var sb strings.Builder
			for _, e := range entries {
				if e.IsDir {
					fmt.Fprintf(&sb, "%s/\n", e.Name)
				} else {
					fmt.Fprintf(&sb, "%s (%d bytes)\n", e.Name, e.Size)
				}
			}
			return sb.String(), nil
		},
	})

	r.Register(agentloop.Capability{
		Name:        "glob",
		Description: "Find files matching a glob pattern.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern (e.g., \"*.ts\").",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Base directory. Default: workspace root.",
				},
			},
			"required": []string{"pattern"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			pattern, ok := agentloop.StringArg(args, "pattern")
			if !ok || pattern == "" {
				return nil, fmt.Errorf("pattern is required")
			}
			path, _ := agentloop.StringArg(args, "path")
			matches, err := ws.Glob(pattern, path)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return "No files matched the pattern.", nil
			}
			return strings.Join(matches, "\n"), nil
		},
	})
}

// RegisterCommandTools registers shell command execution on a router.
func RegisterCommandTools(r *agentloop.Router, ws *Workspace, cfg CommandConfig) {
	if cfg.DefaultTimeoutMs <= 0 {
		cfg.DefaultTimeoutMs = DefaultCommandConfig.DefaultTimeoutMs
	}
	if cfg.MaxTimeoutMs <= 0 {
		cfg.MaxTimeoutMs = DefaultCommandConfig.MaxTimeoutMs
	}
	runner := NewCommandRunner(ws)

	r.Register(agentloop.Capability{
		Name:        "run_command",
		Description: "Execute a shell command in the workspace. Returns stdout, stderr, and exit code.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The command to run.",
				},
				"timeout_ms": map[string]any{
					"type":        "integer",
					"description": "Override the default command timeout in milliseconds.",
				},
				"working_dir": map[string]any{
					"type":        "string",
					"description": "Working directory relative to the workspace root.",
				},
			},
			"required": []string{"command"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			command, ok := agentloop.StringArg(args, "command")
			if !ok || command == "" {
				return nil, fmt.Errorf("command is required")
			}
			timeoutMs, _ := agentloop.IntArg(args, "timeout_ms")
			if timeoutMs <= 0 {
				timeoutMs = cfg.DefaultTimeoutMs
			}
			if timeoutMs > cfg.MaxTimeoutMs {
				timeoutMs = cfg.MaxTimeoutMs
			}
			workingDir, _ := agentloop.StringArg(args, "working_dir")

			result, err := runner.Run(ctx, command, timeoutMs, workingDir, nil)
			if err != nil {
				return nil, err
			}

			var sb strings.Builder
			sb.WriteString(result.Output())
			if result.TimedOut {
				fmt.Fprintf(&sb, "\n\n[Command timed out after %dms. Partial output is shown above. Retry with a larger timeout_ms if needed.]", timeoutMs)
			}
			if result.ExitCode != 0 && !result.TimedOut {
				fmt.Fprintf(&sb, "\n\n[Exit code: %d]", result.ExitCode)
			}
			return sb.String(), nil
		},
	})
}

// RegisterProcessTools registers background process control on a router.
// The dev server lifecycle runs through these.
func RegisterProcessTools(r *agentloop.Router, pm *ProcessManager) {
	r.Register(agentloop.Capability{
		Name:        "start_dev_server",
		Description: "Start a long-running command, such as a dev server, in the background. Returns a process id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The command to run in the background.",
				},
				"working_dir": map[string]any{
					"type":        "string",
					"description": "Working directory relative to the workspace root.",
				},
			},
			"required": []string{"command"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			command, ok := agentloop.StringArg(args, "command")
			if !ok || command == "" {
				return nil, fmt.Errorf("command is required")
			}
			workingDir, _ := agentloop.StringArg(args, "working_dir")
			id, err := pm.Start(command, workingDir)
			if err != nil {
				return nil, err
			}
			return map[string]any{"process_id": id}, nil
		},
	})

	r.Register(agentloop.Capability{
		Name:        "stop_dev_server",
		Description: "Stop a background process by id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"process_id": map[string]any{
					"type":        "string",
					"description": "Identifier returned by start_dev_server.",
				},
			},
			"required": []string{"process_id"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			id, ok := agentloop.StringArg(args, "process_id")
			if !ok || id == "" {
				return nil, fmt.Errorf("process_id is required")
			}
			if err := pm.Stop(id); err != nil {
				return nil, err
			}
			return "Process stopped.", nil
		},
	})

	r.Register(agentloop.Capability{
		Name:        "server_logs",
		Description: "Read the recent output of a background process.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"process_id": map[string]any{
					"type":        "string",
					"description": "Identifier returned by start_dev_server.",
				},
			},
			"required": []string{"process_id"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			id, ok := agentloop.StringArg(args, "process_id")
			if !ok || id == "" {
				return nil, fmt.Errorf("process_id is required")
			}
			return pm.Output(id)
		},
	})

	r.Register(agentloop.Capability{
		Name:        "list_processes",
		Description: "List running background processes.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			infos := pm.List()
			if len(infos) == 0 {
				return "No background processes running.", nil
			}
			return infos, nil
		},
	})
}
