package agentloop

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// invocationSignature computes a deterministic signature for a tool
// invocation (name + hash of its arguments).
func invocationSignature(inv ToolInvocation) string {
	raw, _ := json.Marshal(inv.Args)
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", inv.Tool, h[:8])
}

// DetectRepetition checks whether the last windowSize invocations follow a
// repeating pattern of length 1, 2, or 3. It is advisory: the loop injects
// a warning but never terminates on it.
func DetectRepetition(log []ToolInvocation, windowSize int) bool {
	if len(log) < windowSize {
		return false
	}

	sigs := make([]string, windowSize)
	for i, inv := range log[len(log)-windowSize:] {
		sigs[i] = invocationSignature(inv)
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}
