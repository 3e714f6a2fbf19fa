package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildSystemPrompt constructs the fixed operating instructions seeded as
// the first turn of every session: the tool-call syntax, the behavioral
// rules, and the advertised capability list.
func BuildSystemPrompt(caps []Capability, extra string) string {
	var sb strings.Builder

	sb.WriteString(`You are an autonomous coding agent. You accomplish tasks by invoking tools.

To invoke a tool, respond with a single JSON object and nothing else:

{"tool": "<tool_name>", "args": {"<param>": <value>}}

Rules:
- Invoke at most one tool per response.
- After a tool result is reported back to you, decide the next step yourself; do not wait to be asked.
- Never describe an action you intend to take. Take it, by invoking the tool.
- When the task is complete, respond with a short plain-text summary of what was done instead of a tool call.`)

	if len(caps) > 0 {
		sb.WriteString("\n\nAvailable tools:\n")
		for _, c := range caps {
			fmt.Fprintf(&sb, "\n- %s: %s", c.Name, c.Description)
			if len(c.Parameters) > 0 {
				if schema, err := json.Marshal(c.Parameters); err == nil {
					fmt.Fprintf(&sb, "\n  parameters: %s", schema)
				}
			}
		}
	}

	if extra != "" {
		sb.WriteString("\n\n")
		sb.WriteString(extra)
	}

	return sb.String()
}
