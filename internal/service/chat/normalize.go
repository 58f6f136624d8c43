package chat

import (
	"strings"

	"vaanigo/internal/models"

	"github.com/cloudwego/eino/schema"
)

// Placeholder content substituted for empty turns. Provider clients misbehave
// on empty-text messages, so the conversation handed to them never contains
// one.
const (
	placeholderUser      = "Hello"
	placeholderAssistant = "I'm an AI assistant."
)

// Normalize converts the frontend's flat message list into the conversation
// handed to model and agent invocations. Turns with roles other than user or
// assistant are dropped, text is trimmed, empty turns get a role-specific
// placeholder, and the result is never empty: an all-filtered input yields a
// single synthetic user greeting.
func Normalize(msgs []models.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, msg := range msgs {
		content := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case models.RoleUser:
			if content == "" {
				content = placeholderUser
			}
			out = append(out, schema.UserMessage(content))
		case models.RoleAssistant:
			if content == "" {
				content = placeholderAssistant
			}
			out = append(out, schema.AssistantMessage(content, nil))
		}
	}
	if len(out) == 0 {
		out = append(out, schema.UserMessage(placeholderUser))
	}
	return out
}

// PrependSystem puts a system turn ahead of the conversation without
// mutating the input slice.
func PrependSystem(conv []*schema.Message, prompt string) []*schema.Message {
	out := make([]*schema.Message, 0, len(conv)+1)
	out = append(out, schema.SystemMessage(prompt))
	return append(out, conv...)
}
