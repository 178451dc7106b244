package translate

import (
	"context"
	"fmt"
	"time"
)

type mockClient struct{}

// NewMockClient returns a client that tags text with the language pair so
// pipeline behavior is observable without a real backend.
func NewMockClient() Client { return &mockClient{} }

func (m *mockClient) Translate(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	source := req.SourceLang
	if source == "" {
		source = SourceAuto
	}
	return Result{
		TranslatedText: fmt.Sprintf("[%s->%s] %s", source, req.TargetLang, req.Text),
		DetectedSource: source,
	}, nil
}
