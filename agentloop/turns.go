package agentloop

import "github.com/techkanna/my-ai-ide/llmclient"

// Role attributes a conversation turn. The system role carries both fixed
// operating instructions and injected tool results/corrections.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in the conversation sequence.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemTurn creates a system Turn.
func NewSystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// NewUserTurn creates a user Turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewAssistantTurn creates an assistant Turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// StripSystemTurns returns prior history with system turns removed, so an
// injected history never carries a second instruction block.
func StripSystemTurns(turns []Turn) []Turn {
	var out []Turn
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		out = append(out, t)
	}
	return out
}

// convertTurns maps the conversation sequence onto llmclient messages.
func convertTurns(turns []Turn) []llmclient.Message {
	messages := make([]llmclient.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			messages = append(messages, llmclient.SystemMessage(t.Content))
		case RoleUser:
			messages = append(messages, llmclient.UserMessage(t.Content))
		case RoleAssistant:
			messages = append(messages, llmclient.AssistantMessage(t.Content))
		}
	}
	return messages
}
