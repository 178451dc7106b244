package translate

import "context"

// SourceAuto asks the backend to detect the source language itself.
const SourceAuto = "auto"

// Request describes one translation call.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
}

// Result carries the translated text. DetectedSource is the language the
// backend actually translated from, useful when the request used SourceAuto.
type Result struct {
	TranslatedText string
	DetectedSource string
}

// Client is the contract for translation backends. Implementations must
// report failures (backend errors, timeouts, unsupported language pairs)
// instead of passing untranslated or truncated text through.
type Client interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
