package llm

import (
	"github.com/tmc/langchaingo/llms"

	"github.com/aretw0/orderbot/pkg/domain"
)

// Messages converts a transcript into provider messages.
// Providers accept system content only at the head of a conversation, so
// system turns that follow user or assistant turns are sent as human turns.
func Messages(turns []domain.Turn) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(turns))
	head := true
	for _, t := range turns {
		var role llms.ChatMessageType
		switch t.Role {
		case domain.RoleSystem:
			role = llms.ChatMessageTypeHuman
			if head {
				role = llms.ChatMessageTypeSystem
			}
		case domain.RoleAssistant:
			role = llms.ChatMessageTypeAI
			head = false
		default:
			role = llms.ChatMessageTypeHuman
			head = false
		}
		out = append(out, llms.TextParts(role, t.Content))
	}
	return out
}
