package chat

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
)

type openaiCompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAICompleter wraps the OpenAI chat completions API.
func NewOpenAICompleter(apiKey, model string, maxTokens int, temperature float64) Completer {
	return &openaiCompleter{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

func (c *openaiCompleter) Complete(ctx context.Context, turns []conversation.Turn, systemInstruction string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemInstruction,
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
