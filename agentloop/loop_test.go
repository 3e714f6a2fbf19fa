package agentloop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/techkanna/my-ai-ide/llmclient"
)

// scriptedAdapter replays a fixed sequence of model responses and records
// every request it receives.
type scriptedAdapter struct {
	responses []string
	requests  []llmclient.Request
}

func (a *scriptedAdapter) Name() string { return "scripted" }

func (a *scriptedAdapter) Complete(ctx context.Context, req llmclient.Request) (*llmclient.Response, error) {
	a.requests = append(a.requests, req)
	i := len(a.requests) - 1
	text := ""
	if i < len(a.responses) {
		text = a.responses[i]
	}
	return &llmclient.Response{
		ID:       "scripted",
		Provider: "scripted",
		Text:     text,
	}, nil
}

func newTestLoop(t *testing.T, adapter *scriptedAdapter, config LoopConfig) *Loop {
	t.Helper()
	client := llmclient.NewClient(llmclient.WithProvider("scripted", adapter))
	router := NewRouter(
		Capability{
			Name: "write_file",
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				path, _ := StringArg(args, "path")
				return "wrote " + path, nil
			},
		},
		Capability{
			Name: "read_file",
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return "file contents", nil
			},
		},
	)
	loop := NewLoop(client, router, config, nil)
	t.Cleanup(loop.Close)
	return loop
}

// requestContains reports whether any message of the i-th captured request
// contains the given substring.
func requestContains(a *scriptedAdapter, i int, substr string) bool {
	if i >= len(a.requests) {
		return false
	}
	for _, m := range a.requests[i].Messages {
		if strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

func TestLoopToolCallThenFinalAnswer(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		`{"tool": "write_file", "args": {"path": "hello.py", "content": "print('hi')"}}`,
		"File created.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	result, err := loop.Run(context.Background(), "Create a file hello.py that prints hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalMessage != "File created." {
		t.Errorf("expected final message %q, got %q", "File created.", result.FinalMessage)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Tool != "write_file" {
		t.Errorf("expected one write_file call, got %+v", result.ToolCalls)
	}
	// The dispatch result must have been fed back to the model.
	if !requestContains(adapter, 1, "wrote hello.py") {
		t.Error("tool result was not reported back into the conversation")
	}
}

func TestLoopUnknownCapabilityContinues(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		`{"tool": "compile_project", "args": {}}`,
		"The requested tool is unavailable, so nothing was changed.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	result, err := loop.Run(context.Background(), "What tools do you have?", nil)
	if err != nil {
		t.Fatalf("an unknown tool must not abort the session: %v", err)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if !requestContains(adapter, 1, "capability not found") {
		t.Error("expected the not-found envelope in the follow-up request")
	}
	if !requestContains(adapter, 1, "Adjust your approach") {
		t.Error("expected the failure recovery instruction in the follow-up request")
	}
}

func TestLoopCapabilityErrorContinues(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		`{"tool": "broken", "args": {}}`,
		"The operation failed and I could not recover it.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})
	loop.Router().Register(Capability{
		Name: "broken",
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("permission denied")
		},
	})

	result, err := loop.Run(context.Background(), "What happened here?", nil)
	if err != nil {
		t.Fatalf("a failing capability must not abort the session: %v", err)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if !requestContains(adapter, 1, "permission denied") {
		t.Error("expected the capability error to reach the model")
	}
}

func TestLoopRoundBudgetExceeded(t *testing.T) {
	call := `{"tool": "read_file", "args": {"path": "a.go"}}`
	adapter := &scriptedAdapter{responses: []string{call, call, call, call}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 3})

	_, err := loop.Run(context.Background(), "Inspect the project", nil)
	if !errors.Is(err, ErrRoundBudgetExceeded) {
		t.Fatalf("expected ErrRoundBudgetExceeded, got %v", err)
	}
	if len(adapter.requests) != 3 {
		t.Errorf("budget of 3 must stop after exactly 3 model calls, got %d", len(adapter.requests))
	}
}

func TestLoopNarrationGuard(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		"I'll create the component now.",
		`{"tool": "write_file", "args": {"path": "button.tsx", "content": "export {}"}}`,
		"Created button.tsx with the component.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	result, err := loop.Run(context.Background(), "Create a button component", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", result.Iterations)
	}
	if !requestContains(adapter, 1, "Execute it now") {
		t.Error("expected the narration guard instruction in the second request")
	}
}

func TestLoopNarrationAllowedAfterAction(t *testing.T) {
	// Once an action-class tool has run, narration-shaped text is a valid
	// final answer.
	adapter := &scriptedAdapter{responses: []string{
		`{"tool": "write_file", "args": {"path": "a.txt", "content": "x"}}`,
		"I'll note that a.txt now contains the requested content.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	result, err := loop.Run(context.Background(), "Create a.txt", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != 2 {
		t.Errorf("expected the guard to stand down after an action, got %d iterations", result.Iterations)
	}
}

func TestLoopEmptyResponseGuard(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		"   \n  ",
		"Everything requested was already in place.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	result, err := loop.Run(context.Background(), "Check the setup", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if !requestContains(adapter, 1, "Your last response was empty") {
		t.Error("expected the empty-response guard in the second request")
	}
}

func TestLoopTerseSummaryGuard(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		`{"tool": "write_file", "args": {"path": "hello.py", "content": "print('hi')"}}`,
		"Done.",
		"Created hello.py with the requested script.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	result, err := loop.Run(context.Background(), "Create hello.py", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", result.Iterations)
	}
	if result.FinalMessage != "Created hello.py with the requested script." {
		t.Errorf("expected the expanded summary, got %q", result.FinalMessage)
	}
	if !requestContains(adapter, 2, "human-readable summary") {
		t.Error("expected the terse-summary guard in the third request")
	}
}

func TestLoopToolLikeFragmentIsFinalText(t *testing.T) {
	// Wrong envelope keys: not extractable, so it is free text and a valid
	// final answer on round one.
	adapter := &scriptedAdapter{responses: []string{
		`{"name": "write_file", "arguments": {"path": "x"}}`,
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	result, err := loop.Run(context.Background(), "What would a tool call look like?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", result.Iterations)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %+v", result.ToolCalls)
	}
}

func TestLoopPriorTurnsStripped(t *testing.T) {
	prior := []Turn{
		NewSystemTurn("stale instruction block"),
		NewUserTurn("earlier question"),
		NewAssistantTurn("earlier answer"),
	}
	adapter := &scriptedAdapter{responses: []string{"Nothing further to report on that thread."}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	if _, err := loop.Run(context.Background(), "Continue the thread", prior); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requestContains(adapter, 0, "stale instruction block") {
		t.Error("injected system turns must be stripped")
	}
	if !requestContains(adapter, 0, "earlier question") {
		t.Error("injected user turns must be preserved")
	}
}

func TestLoopFreshSessionIDPerRun(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		"Nothing to change in the first pass.",
		"Nothing to change in the second pass.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{MaxRounds: 5})

	for i := 0; i < 2; i++ {
		if _, err := loop.Run(context.Background(), "Review the project", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ids := map[string]bool{}
drain:
	for {
		select {
		case ev := <-loop.Events():
			if ev.SessionID == "" {
				t.Fatal("event without a session id")
			}
			ids[ev.SessionID] = true
		default:
			break drain
		}
	}
	if len(ids) != 2 {
		t.Errorf("expected a distinct session id per run, got %d", len(ids))
	}
}

func TestLoopRepetitionWarning(t *testing.T) {
	call := `{"tool": "read_file", "args": {"path": "same.go"}}`
	adapter := &scriptedAdapter{responses: []string{
		call, call, call,
		"The file never changes between reads.",
	}}
	loop := newTestLoop(t, adapter, LoopConfig{
		MaxRounds:        10,
		DetectRepetition: true,
		RepetitionWindow: 3,
	})

	result, err := loop.Run(context.Background(), "What is in same.go?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != 4 {
		t.Errorf("repetition warning is advisory, loop should finish at round 4, got %d", result.Iterations)
	}
	if !requestContains(adapter, 3, "repeating pattern") {
		t.Error("expected the repetition warning in the conversation")
	}
}
