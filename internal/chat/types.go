package chat

import (
	"context"

	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
)

// Completer is the contract for chat completion backends. Implementations
// receive the turn history oldest first and must not reorder it. An empty
// history is valid: the model sees only the system instruction.
type Completer interface {
	Complete(ctx context.Context, turns []conversation.Turn, systemInstruction string) (string, error)
}
