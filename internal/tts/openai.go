package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voicefusion-labs/voicefusion-core/internal/artifact"
)

type openaiSynth struct {
	client *openai.Client
	store  artifact.Store
	voice  openai.SpeechVoice
}

// NewOpenAISynth uses the OpenAI speech API and publishes the returned audio
// bytes to the artifact store.
func NewOpenAISynth(apiKey, voice string, store artifact.Store) Synthesizer {
	v := openai.SpeechVoice(voice)
	if voice == "" || voice == "default" {
		v = openai.VoiceAlloy
	}
	return &openaiSynth{client: openai.NewClient(apiKey), store: store, voice: v}
}

func (s *openaiSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          req.Text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return Result{}, fmt.Errorf("read openai speech audio: %w", err)
	}

	name := "tts_" + uuid.NewString() + ".mp3"
	ref, err := s.store.Put(ctx, name, audio, "audio/mpeg")
	if err != nil {
		return Result{}, err
	}
	return Result{AudioRef: ref}, nil
}
