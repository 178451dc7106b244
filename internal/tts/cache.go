package tts

import (
	"context"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

type limitedSynth struct {
	next     Synthesizer
	maxChars int
}

// WithMaxChars rejects input longer than maxChars before it reaches the
// backend. The rejection is a synthesis failure like any other.
func WithMaxChars(next Synthesizer, maxChars int) Synthesizer {
	return &limitedSynth{next: next, maxChars: maxChars}
}

func (l *limitedSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	if l.maxChars > 0 && utf8.RuneCountInString(req.Text) > l.maxChars {
		return Result{}, ErrTextTooLong
	}
	return l.next.Synthesize(ctx, req)
}

type cachedSynth struct {
	next  Synthesizer
	cache *lru.Cache[string, string]
}

// WithCache memoizes successful synthesis results in a size-bounded LRU keyed
// by text, voice, and language. Synthesis is idempotent per distinct input,
// which makes reuse of a previous locator safe.
func WithCache(next Synthesizer, size int) (Synthesizer, error) {
	if size <= 0 {
		return next, nil
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &cachedSynth{next: next, cache: cache}, nil
}

func (c *cachedSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	key := req.Voice + "\x00" + req.Language + "\x00" + req.Text
	if ref, ok := c.cache.Get(key); ok {
		return Result{AudioRef: ref}, nil
	}
	result, err := c.next.Synthesize(ctx, req)
	if err != nil {
		return Result{}, err
	}
	c.cache.Add(key, result.AudioRef)
	return result, nil
}
