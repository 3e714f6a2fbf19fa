package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/techkanna/my-ai-ide/llmclient"
)

// ErrRoundBudgetExceeded is returned when a session reaches its round budget
// without producing a final answer. It is fatal: callers must not silently
// retry the session.
var ErrRoundBudgetExceeded = errors.New("round budget exceeded without a final answer")

// DefaultMaxRounds bounds a session when the caller does not configure a
// round budget.
const DefaultMaxRounds = 15

// LoopConfig holds configuration for an agent loop.
type LoopConfig struct {
	MaxRounds            int               // round budget per Run call; 0 = DefaultMaxRounds
	Model                string            // model identifier passed to the client
	Provider             string            // provider override; empty = client default
	ExtraInstructions    string            // appended to the seeded system prompt
	DetectRepetition     bool              // inject a warning on repeating tool-call patterns
	RepetitionWindow     int               // window for repetition detection; 0 = 6
	CapabilityCharLimits map[string]int    // per-capability output character limits
	CapabilityLineLimits map[string]int    // per-capability output line limits
	Strategies           []ExtractStrategy // nil = DefaultStrategies()
}

// Loop drives one conversation at a time through repeated rounds of
// "produce text or invoke a tool". Each Run call owns its session state
// exclusively, under a fresh session id; the Loop itself holds only
// configuration and collaborators.
type Loop struct {
	client  *llmclient.Client
	router  *Router
	config  LoopConfig
	logger  *slog.Logger
	emitter *EventEmitter
}

// NewLoop creates an agent loop over the given model client and tool router.
func NewLoop(client *llmclient.Client, router *Router, config LoopConfig, logger *slog.Logger) *Loop {
	if config.MaxRounds <= 0 {
		config.MaxRounds = DefaultMaxRounds
	}
	if config.RepetitionWindow <= 0 {
		config.RepetitionWindow = 6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		client:  client,
		router:  router,
		config:  config,
		logger:  logger,
		emitter: NewEventEmitter(256),
	}
}

// Router returns the tool router this loop dispatches through.
func (l *Loop) Router() *Router { return l.router }

// Events returns the event channel for the host application.
func (l *Loop) Events() <-chan SessionEvent { return l.emitter.Events() }

// Close releases the event channel. Safe to call multiple times.
func (l *Loop) Close() { l.emitter.Close() }

// RunResult is returned by a session that reached a genuine final answer.
type RunResult struct {
	FinalMessage string           `json:"final_message"`
	ToolCalls    []ToolInvocation `json:"tool_calls"`
	Iterations   int              `json:"iterations"`
}

// session is the state owned by exactly one Run call. It is created at the
// start of the call, mutated only by it, and discarded when it returns.
type session struct {
	id          string
	logger      *slog.Logger
	turns       []Turn
	invocations []ToolInvocation
	results     []ToolResult
}

// Run executes one full session: seed the conversation, then iterate rounds
// until the model produces a genuine final answer or the round budget is
// exhausted. Prior turns may be injected; their system turns are stripped so
// the instruction block is never duplicated.
//
// Capability failures and malformed tool calls are recovered inside the
// conversation. Only budget exhaustion (and a failing model call) surface as
// errors.
func (l *Loop) Run(ctx context.Context, message string, prior []Turn) (*RunResult, error) {
	s := &session{id: uuid.New().String()}
	s.logger = l.logger.With("session", s.id)
	s.turns = append(s.turns, NewSystemTurn(BuildSystemPrompt(l.router.List(), l.config.ExtraInstructions)))
	s.turns = append(s.turns, StripSystemTurns(prior)...)
	s.turns = append(s.turns, NewUserTurn(message))

	userWantsAction := containsActionVerb(message)

	for round := 1; round <= l.config.MaxRounds; round++ {
		l.emitter.Emit(s.id, EventRoundStart, map[string]any{"round": round})

		resp, err := l.client.Complete(ctx, llmclient.Request{
			Model:    l.config.Model,
			Provider: l.config.Provider,
			Messages: convertTurns(s.turns),
		})
		if err != nil {
			return nil, fmt.Errorf("model call failed on round %d: %w", round, err)
		}
		text := resp.Text
		l.emitter.Emit(s.id, EventModelResponse, map[string]any{"round": round, "chars": len(text)})
		s.logger.Debug("model response", "round", round, "chars", len(text))

		// 1. Tool invocation: dispatch, report the envelope back, and always
		// continue to the next round so the model can react, even on error.
		if inv := ExtractInvocation(text, l.config.Strategies); inv != nil {
			s.invocations = append(s.invocations, *inv)
			s.turns = append(s.turns, NewAssistantTurn(fmt.Sprintf("Using tool: %s", inv.Tool)))

			l.emitter.Emit(s.id, EventToolCallStart, map[string]any{"tool": inv.Tool})
			s.logger.Info("dispatching tool", "round", round, "tool", inv.Tool)
			result := l.router.Dispatch(ctx, inv.Tool, inv.Args)
			s.results = append(s.results, result)
			l.emitter.Emit(s.id, EventToolCallEnd, map[string]any{"tool": inv.Tool, "success": result.Success})
			if !result.Success {
				s.logger.Warn("tool failed", "tool", inv.Tool, "error", result.Error)
			}

			s.turns = append(s.turns, NewSystemTurn(l.formatResultTurn(*inv, result)))

			if l.config.DetectRepetition && DetectRepetition(s.invocations, l.config.RepetitionWindow) {
				warning := fmt.Sprintf("The last %d tool calls follow a repeating pattern. Try a different approach.", l.config.RepetitionWindow)
				s.turns = append(s.turns, NewSystemTurn(warning))
				l.emitter.Emit(s.id, EventRepetition, map[string]any{"window": l.config.RepetitionWindow})
			}
			continue
		}

		trimmed := strings.TrimSpace(text)

		// 2. Empty response: demand either a completion message or a tool call.
		if trimmed == "" {
			l.injectGuard(s, round, "empty_response",
				"Your last response was empty. Either report completion in plain text or invoke a tool.")
			continue
		}

		// 3. Narrated intent without execution: only fires while no
		// action-class tool has been dispatched this session.
		if userWantsAction && AnnouncesAction(trimmed) && !hasActionDispatch(s.invocations) {
			l.injectGuard(s, round, "action_narrated",
				"You described an action instead of performing it. Execute it now by invoking the appropriate tool.")
			continue
		}

		// 4. Action taken but the closing text is not a usable summary.
		if hasActionDispatch(s.invocations) && tooTerse(trimmed) {
			l.injectGuard(s, round, "terse_summary",
				"Provide a short human-readable summary of what you did to complete the request.")
			continue
		}

		// 5. Genuine final answer.
		s.turns = append(s.turns, NewAssistantTurn(trimmed))
		l.emitter.Emit(s.id, EventFinalAnswer, map[string]any{"round": round})
		s.logger.Info("session complete", "rounds", round, "tool_calls", len(s.invocations))
		return &RunResult{
			FinalMessage: trimmed,
			ToolCalls:    s.invocations,
			Iterations:   round,
		}, nil
	}

	l.emitter.Emit(s.id, EventBudgetExceeded, map[string]any{"rounds": l.config.MaxRounds})
	s.logger.Error("round budget exhausted", "rounds", l.config.MaxRounds)
	return nil, fmt.Errorf("agent loop: %w after %d rounds", ErrRoundBudgetExceeded, l.config.MaxRounds)
}

// injectGuard appends a corrective system turn and records the event.
func (l *Loop) injectGuard(s *session, round int, kind, instruction string) {
	s.turns = append(s.turns, NewSystemTurn(instruction))
	l.emitter.Emit(s.id, EventGuardInjected, map[string]any{"round": round, "guard": kind})
	s.logger.Debug("guard injected", "round", round, "guard", kind)
}

// formatResultTurn renders a dispatch envelope for model consumption.
func (l *Loop) formatResultTurn(inv ToolInvocation, result ToolResult) string {
	if !result.Success {
		return fmt.Sprintf("Tool %q failed: %s\nAdjust your approach and continue toward the goal.", inv.Tool, result.Error)
	}
	rendered := renderResult(result.Result)
	rendered = TruncateCapabilityOutput(rendered, inv.Tool, l.config.CapabilityCharLimits, l.config.CapabilityLineLimits)
	return fmt.Sprintf("Tool %q result:\n%s", inv.Tool, rendered)
}

// renderResult turns an arbitrary capability result into text.
func renderResult(v any) string {
	switch r := v.(type) {
	case nil:
		return "(no output)"
	case string:
		if r == "" {
			return "(no output)"
		}
		return r
	default:
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(raw)
	}
}
