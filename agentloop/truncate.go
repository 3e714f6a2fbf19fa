package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is cut.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultCapabilityCharLimits caps how many characters of a capability's
// output are fed back into the conversation.
var DefaultCapabilityCharLimits = map[string]int{
	"read_file":            50000,
	"run_command":          30000,
	"list_directory":       20000,
	"write_file":           1000,
	"browser_console_logs": 20000,
	"browser_screenshot":   2000,
}

// DefaultTruncationModes selects the cut strategy per capability.
var DefaultTruncationModes = map[string]TruncationMode{
	"read_file":            TruncateHeadTail,
	"run_command":          TruncateHeadTail,
	"list_directory":       TruncateTail,
	"write_file":           TruncateTail,
	"browser_console_logs": TruncateTail,
}

// DefaultCapabilityLineLimits caps output line counts after character
// truncation.
var DefaultCapabilityLineLimits = map[string]int{
	"run_command":          256,
	"list_directory":       500,
	"browser_console_logs": 200,
}

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[Output truncated: first %d characters removed. Re-run with more targeted parameters if you need them.]\n\n", removed) +
			output[len(output)-maxChars:]
	default: // head_tail
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[Output truncated: %d characters removed from the middle. Re-run with more targeted parameters if you need them.]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateCapabilityOutput applies the full truncation pipeline before a
// tool result re-enters the conversation: character truncation first (the
// pathological-case guard), then line truncation for readability.
func TruncateCapabilityOutput(output, name string, charLimits, lineLimits map[string]int) string {
	maxChars, ok := charLimits[name]
	if !ok {
		maxChars, ok = DefaultCapabilityCharLimits[name]
		if !ok {
			maxChars = 30000
		}
	}

	mode, ok := DefaultTruncationModes[name]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	maxLines := 0
	if lineLimits != nil {
		if ml, ok := lineLimits[name]; ok {
			maxLines = ml
		}
	}
	if maxLines == 0 {
		if ml, ok := DefaultCapabilityLineLimits[name]; ok {
			maxLines = ml
		}
	}
	if maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}

	return result
}
