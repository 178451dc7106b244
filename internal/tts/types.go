package tts

import (
	"context"
	"errors"
)

// ErrTextTooLong reports input past the backend length limit. Oversized text
// is a reportable failure, never a silent truncation.
var ErrTextTooLong = errors.New("tts: input text exceeds length limit")

// Request contains parameters to synthesize speech.
type Request struct {
	Text     string
	Voice    string
	Language string
}

// Result carries a dereferenceable locator to the synthesized audio.
type Result struct {
	AudioRef string
}

// Synthesizer is the contract for producing a playable audio artifact from
// text. Synthesis is idempotent per distinct input text.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}
