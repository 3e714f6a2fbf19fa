// Package autoloop drives an agent loop through repeated goal-directed
// cycles until the work reads as complete or the cycle budget runs out.
// Unlike a single agent session, the outer loop never fails hard: every
// terminal condition is reported as an Outcome.
package autoloop

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/techkanna/my-ai-ide/agentloop"
)

// DefaultMaxCycles bounds a run when the caller does not configure a
// cycle budget.
const DefaultMaxCycles = 20

// DefaultCheckInterval is how often, in cycles, browser validation runs.
const DefaultCheckInterval = 3

// DefaultCompletionKeywords mark a cycle's final message as "the goal is
// achieved".
var DefaultCompletionKeywords = []string{"done", "complete", "completed", "finished"}

// browserCapabilities must all be registered for validation to run.
var browserCapabilities = []string{"browser_navigate", "browser_screenshot", "browser_console_logs"}

// Config holds configuration for an autonomous run.
type Config struct {
	MaxCycles          int      // cycle budget; 0 = DefaultMaxCycles
	DevServerCommand   string   // started before the first cycle when set
	DevServerDir       string   // working directory for the dev server
	PreviewURL         string   // enables browser validation when set
	SuccessCriteria    string   // predicate judged against the validation summary
	CheckInterval      int      // validation cadence in cycles; 0 = DefaultCheckInterval
	CompletionKeywords []string // nil = DefaultCompletionKeywords
}

// Outcome is the terminal report of an autonomous run.
type Outcome struct {
	Success      bool                       `json:"success"`
	Iterations   int                        `json:"iterations"`
	FinalMessage string                     `json:"final_message"`
	ToolCalls    []agentloop.ToolInvocation `json:"tool_calls,omitempty"`
}

// Runner owns the outer cycle loop around an agent loop.
type Runner struct {
	loop   *agentloop.Loop
	router *agentloop.Router
	config Config
	logger *slog.Logger
}

// NewRunner creates a runner over an agent loop and its tool router.
func NewRunner(loop *agentloop.Loop, router *agentloop.Router, config Config, logger *slog.Logger) *Runner {
	if config.MaxCycles <= 0 {
		config.MaxCycles = DefaultMaxCycles
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	if config.CompletionKeywords == nil {
		config.CompletionKeywords = DefaultCompletionKeywords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{loop: loop, router: router, config: config, logger: logger}
}

// Run executes cycles toward the goal until a completion signal, a cycle
// failure, or the cycle budget. It never returns an error; every terminal
// state is an Outcome. The dev server, if one was started, is stopped on
// every exit path.
func (r *Runner) Run(ctx context.Context, goal string) (outcome Outcome) {
	serverID := r.setup(ctx)
	defer r.teardown(ctx, serverID)

	var toolCalls []agentloop.ToolInvocation

	for cycle := 1; cycle <= r.config.MaxCycles; cycle++ {
		prompt := r.cyclePrompt(goal, cycle)
		r.logger.Info("cycle start", "cycle", cycle, "budget", r.config.MaxCycles)

		result, err := r.loop.Run(ctx, prompt, nil)
		if err != nil {
			r.logger.Error("cycle failed", "cycle", cycle, "error", err)
			return Outcome{
				Success:      false,
				Iterations:   cycle,
				FinalMessage: fmt.Sprintf("cycle %d failed: %v", cycle, err),
				ToolCalls:    toolCalls,
			}
		}
		toolCalls = append(toolCalls, result.ToolCalls...)

		if r.isComplete(result.FinalMessage) {
			r.logger.Info("completion signal", "cycle", cycle)
			return Outcome{
				Success:      true,
				Iterations:   cycle,
				FinalMessage: result.FinalMessage,
				ToolCalls:    toolCalls,
			}
		}

		if cycle%r.config.CheckInterval == 0 && r.validationAvailable() {
			summary, ok := r.validate(ctx)
			if ok {
				r.logger.Info("success criteria satisfied", "cycle", cycle)
				return Outcome{
					Success:      true,
					Iterations:   cycle,
					FinalMessage: summary,
					ToolCalls:    toolCalls,
				}
			}
		}
	}

	r.logger.Warn("cycle budget exhausted", "cycles", r.config.MaxCycles)
	return Outcome{
		Success:      false,
		Iterations:   r.config.MaxCycles,
		FinalMessage: fmt.Sprintf("cycle budget of %d exhausted without a completion signal", r.config.MaxCycles),
		ToolCalls:    toolCalls,
	}
}

// setup starts the dev server when one is configured and returns its
// process id for teardown. A failed start is logged, not fatal; cycles may
// still make progress without it.
func (r *Runner) setup(ctx context.Context) string {
	if r.config.DevServerCommand == "" {
		return ""
	}

	result := r.router.Dispatch(ctx, "start_dev_server", map[string]any{
		"command":     r.config.DevServerCommand,
		"working_dir": r.config.DevServerDir,
	})
	if !result.Success {
		r.logger.Warn("dev server start failed", "error", result.Error)
		return ""
	}

	if payload, ok := result.Result.(map[string]any); ok {
		if id, ok := payload["process_id"].(string); ok {
			r.logger.Info("dev server started", "process_id", id)
			return id
		}
	}
	r.logger.Warn("dev server start returned no process id")
	return ""
}

// teardown stops the dev server. It runs on every exit path and its
// failures are swallowed; a stuck server must never mask the run's outcome.
func (r *Runner) teardown(ctx context.Context, serverID string) {
	if serverID == "" {
		return
	}
	result := r.router.Dispatch(ctx, "stop_dev_server", map[string]any{"process_id": serverID})
	if !result.Success {
		r.logger.Warn("dev server stop failed", "process_id", serverID, "error", result.Error)
		return
	}
	r.logger.Info("dev server stopped", "process_id", serverID)
}

// cyclePrompt renders the goal for a cycle. Later cycles remind the model
// it is resuming, since each cycle is a fresh session.
func (r *Runner) cyclePrompt(goal string, cycle int) string {
	if cycle == 1 {
		return goal
	}
	return fmt.Sprintf("%s\n\nThis is a continuation (cycle %d). Review the current state of the workspace, then keep working toward the goal. If everything is already done, say so.", goal, cycle)
}

var wordRe = regexp.MustCompile(`[a-z]+`)

// isComplete reports whether a cycle's final message carries a completion
// keyword as a whole word.
func (r *Runner) isComplete(message string) bool {
	for _, w := range wordRe.FindAllString(strings.ToLower(message), -1) {
		for _, kw := range r.config.CompletionKeywords {
			if w == kw {
				return true
			}
		}
	}
	return false
}

// validationAvailable reports whether browser validation can run: a preview
// URL is configured and all browser capabilities are registered.
func (r *Runner) validationAvailable() bool {
	if r.config.PreviewURL == "" {
		return false
	}
	for _, name := range browserCapabilities {
		if !r.router.Has(name) {
			return false
		}
	}
	return true
}

// validate runs an auxiliary session that inspects the running application
// through the browser, then, when success criteria are configured, a second
// session judging them against the summary. It returns the summary and
// whether the criteria were affirmed. Validation errors never stop the run.
func (r *Runner) validate(ctx context.Context) (string, bool) {
	inspect := fmt.Sprintf(
		"Navigate to %s using browser_navigate, capture a screenshot with browser_screenshot, and collect console output with browser_console_logs. Then summarize the application's current runtime and visual state, including any errors.",
		r.config.PreviewURL)

	summaryResult, err := r.loop.Run(ctx, inspect, nil)
	if err != nil {
		r.logger.Warn("validation session failed", "error", err)
		return "", false
	}
	summary := summaryResult.FinalMessage
	r.logger.Info("validation summary", "summary", summary)

	if r.config.SuccessCriteria == "" {
		return summary, false
	}

	judge := fmt.Sprintf(
		"Here is a summary of the application's current state:\n\n%s\n\nDoes the application satisfy the following criteria: %s\n\nAnswer YES or NO, followed by a one-sentence reason.",
		summary, r.config.SuccessCriteria)

	judgeResult, err := r.loop.Run(ctx, judge, nil)
	if err != nil {
		r.logger.Warn("criteria session failed", "error", err)
		return summary, false
	}

	verdict := strings.ToUpper(strings.TrimSpace(judgeResult.FinalMessage))
	return summary, strings.HasPrefix(verdict, "YES")
}
