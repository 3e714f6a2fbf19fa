package agentloop

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ToolInvocation is a parsed request to dispatch a capability. It is never
// mutated after creation.
type ToolInvocation struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ExtractStrategy attempts to pull a tool invocation out of response text.
// It returns the invocation and true on a match, or nil and false when the
// text does not carry one in the form this strategy recognizes.
type ExtractStrategy func(text string) (*ToolInvocation, bool)

// DefaultStrategies returns the accepted surface forms in priority order:
// a bare JSON object, a json-tagged fenced block, a generic fenced block,
// and a JSON object embedded within surrounding prose. Parsing stops at the
// first strategy that succeeds; malformed candidates fall through.
func DefaultStrategies() []ExtractStrategy {
	return []ExtractStrategy{
		extractBareObject,
		extractTaggedFence,
		extractAnyFence,
		extractEmbeddedObject,
	}
}

// ExtractInvocation tries each strategy in order and returns the first
// parsed invocation, or nil when the text is free-form prose.
func ExtractInvocation(text string, strategies []ExtractStrategy) *ToolInvocation {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	for _, strategy := range strategies {
		if inv, ok := strategy(text); ok {
			return inv
		}
	}
	return nil
}

var (
	taggedFenceRe  = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	genericFenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\s*(.*?)```")
)

// decodeInvocation parses a candidate JSON object into a ToolInvocation.
// A candidate is valid only when it carries a non-empty "tool" string; the
// "args" object is optional and defaults to an empty map.
func decodeInvocation(candidate string) (*ToolInvocation, bool) {
	var raw struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}
	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	if strings.TrimSpace(raw.Tool) == "" {
		return nil, false
	}
	if raw.Args == nil {
		raw.Args = map[string]any{}
	}
	return &ToolInvocation{Tool: raw.Tool, Args: raw.Args}, true
}

// extractBareObject matches a response that is, in its entirety, a single
// JSON object.
func extractBareObject(text string) (*ToolInvocation, bool) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, false
	}
	return decodeInvocation(s)
}

// extractTaggedFence matches a fenced block tagged for structured data.
func extractTaggedFence(text string) (*ToolInvocation, bool) {
	for _, m := range taggedFenceRe.FindAllStringSubmatch(text, -1) {
		if inv, ok := decodeInvocation(strings.TrimSpace(m[1])); ok {
			return inv, true
		}
	}
	return nil, false
}

// extractAnyFence matches any fenced block, regardless of tag.
func extractAnyFence(text string) (*ToolInvocation, bool) {
	for _, m := range genericFenceRe.FindAllStringSubmatch(text, -1) {
		if inv, ok := decodeInvocation(strings.TrimSpace(m[1])); ok {
			return inv, true
		}
	}
	return nil, false
}

// extractEmbeddedObject locates a JSON object inside surrounding prose via a
// tolerant scan: every balanced {...} span is tried until one decodes.
func extractEmbeddedObject(text string) (*ToolInvocation, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		span, ok := balancedObject(text, i)
		if !ok {
			continue
		}
		if inv, ok := decodeInvocation(span); ok {
			return inv, true
		}
	}
	return nil, false
}

// balancedObject returns the substring from start to the brace that closes
// it, honoring JSON string literals and escapes.
func balancedObject(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
