package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
)

type ollamaCompleter struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
}

// NewOllamaCompleter talks to a local Ollama server's chat endpoint.
func NewOllamaCompleter(endpoint, model string, maxTokens int, temperature float64) Completer {
	return &ollamaCompleter{
		endpoint:    strings.TrimRight(endpoint, "/"),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (c *ollamaCompleter) Complete(ctx context.Context, turns []conversation.Turn, systemInstruction string) (string, error) {
	messages := make([]ollamaMessage, 0, len(turns)+1)
	messages = append(messages, ollamaMessage{Role: "system", Content: systemInstruction})
	for _, turn := range turns {
		messages = append(messages, ollamaMessage{Role: string(turn.Role), Content: turn.Content})
	}

	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama returned status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	var decoded ollamaChatResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(decoded.Message.Content) == "" {
		return "", fmt.Errorf("ollama returned empty completion")
	}
	return decoded.Message.Content, nil
}
