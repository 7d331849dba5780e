package responder

import (
	"strings"

	"github.com/openai/openai-go"
)

const systemPrompt = `Você é um assistente de IA prestativo que responde perguntas com base no contexto fornecido e no histórico da conversa.
Sempre responda em português do Brasil.

Use o contexto abaixo e o histórico da conversa para responder à pergunta do usuário.
Se você não souber a resposta com base no contexto e no histórico, diga que não sabe.`

// buildMessages assembles the chat-completion message list: system prompt
// (with reference passages when present), prior turns in order, then the
// question last.
func buildMessages(question string, history []Turn, docs []string) []openai.ChatCompletionMessageParamUnion {
	system := systemPrompt
	if len(docs) > 0 {
		system += "\n\nContexto:\n" + strings.Join(docs, "\n---\n")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(system))
	for _, turn := range history {
		if turn.Text == "" {
			continue
		}
		if turn.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(turn.Text))
	}
	messages = append(messages, openai.UserMessage(question))
	return messages
}
