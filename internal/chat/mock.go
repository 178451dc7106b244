package chat

import (
	"context"
	"strings"
	"time"

	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
)

type mockCompleter struct{}

func NewMockCompleter() Completer { return &mockCompleter{} }

func (m *mockCompleter) Complete(ctx context.Context, turns []conversation.Turn, systemInstruction string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	if len(turns) == 0 {
		return "[mock reply to empty history]", nil
	}
	last := turns[len(turns)-1]
	return "[mock reply to " + strings.TrimSpace(last.Content) + "]", nil
}
