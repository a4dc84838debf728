package llms

import "github.com/koscakluka/ema-voice/core/conversations"

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a provider neutral chat message. Providers copy these into
// their own request types.
type Message struct {
	Role    string
	Content string
}

// ToMessages lays out a chat prompt: instructions, then every exchange as a
// user and assistant pair, then the new transcript.
func ToMessages(instructions string, history []conversations.Exchange, transcript string) []Message {
	messages := make([]Message, 0, 2*len(history)+2)
	if instructions != "" {
		messages = append(messages, Message{Role: string(MessageRoleSystem), Content: instructions})
	}

	for _, exchange := range history {
		if exchange.Transcript != "" {
			messages = append(messages, Message{Role: string(MessageRoleUser), Content: exchange.Transcript})
		}
		if exchange.Response != "" {
			messages = append(messages, Message{Role: string(MessageRoleAssistant), Content: exchange.Response})
		}
	}

	return append(messages, Message{Role: string(MessageRoleUser), Content: transcript})
}
