package agentloop

import (
	"strings"
	"testing"
)

func TestTruncateOutputUnderLimit(t *testing.T) {
	out := TruncateOutput("short", 100, TruncateHeadTail)
	if out != "short" {
		t.Errorf("output under limit should be unchanged, got %q", out)
	}
}

func TestTruncateOutputHeadTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	out := TruncateOutput(input, 100, TruncateHeadTail)

	if !strings.HasPrefix(out, strings.Repeat("a", 50)) {
		t.Error("head should be preserved")
	}
	if !strings.HasSuffix(out, strings.Repeat("z", 50)) {
		t.Error("tail should be preserved")
	}
	if !strings.Contains(out, "truncated") {
		t.Error("truncation marker missing")
	}
}

func TestTruncateOutputTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 100)
	out := TruncateOutput(input, 100, TruncateTail)

	if !strings.HasSuffix(out, strings.Repeat("z", 100)) {
		t.Error("tail mode should keep the end")
	}
	if strings.Contains(out[len(out)-100:], "a") {
		t.Error("tail mode should drop the head")
	}
}

func TestTruncateLines(t *testing.T) {
	input := strings.TrimSuffix(strings.Repeat("line\n", 100), "\n")
	out := TruncateLines(input, 10)

	if !strings.Contains(out, "lines omitted") {
		t.Error("line omission marker missing")
	}
	if got := len(strings.Split(out, "\n")); got > 12 {
		t.Errorf("expected ~11 lines, got %d", got)
	}
}

func TestTruncateCapabilityOutputUsesPerToolLimit(t *testing.T) {
	input := strings.Repeat("x", 5000)
	out := TruncateCapabilityOutput(input, "write_file", nil, nil)
	// write_file defaults to a 1000-char budget.
	if len(out) >= 5000 {
		t.Error("write_file output should have been truncated")
	}
}

func TestTruncateCapabilityOutputCallerOverride(t *testing.T) {
	input := strings.Repeat("x", 500)
	out := TruncateCapabilityOutput(input, "read_file", map[string]int{"read_file": 100}, nil)
	if len(out) >= 500 {
		t.Error("caller-supplied limit should override the default")
	}
}
