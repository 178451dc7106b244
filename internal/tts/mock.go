package tts

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"
)

type mockSynth struct{}

// NewMockSynth returns a synthesizer that derives a stable fake locator from
// the input text.
func NewMockSynth() Synthesizer { return &mockSynth{} }

func (m *mockSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(15 * time.Millisecond):
	}
	sum := sha1.Sum([]byte(req.Text))
	return Result{AudioRef: "audio://mock/" + hex.EncodeToString(sum[:8]) + ".wav"}, nil
}
