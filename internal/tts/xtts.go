package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type xttsSynth struct {
	endpoint   string
	httpClient *http.Client
}

type xttsRequest struct {
	Text  string `json:"text"`
	Lang  string `json:"lang,omitempty"`
	Voice string `json:"voice,omitempty"`
}

type xttsResponse struct {
	Status   string `json:"status"`
	AudioURL string `json:"audio_url"`
}

// NewXTTSSynth talks to an XTTS synthesis service over HTTP. The service
// writes the artifact itself and answers with its URL.
func NewXTTSSynth(endpoint string, timeout time.Duration) Synthesizer {
	return &xttsSynth{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *xttsSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(xttsRequest{Text: req.Text, Lang: req.Language, Voice: req.Voice})
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("call synthesis service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("synthesis service returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read synthesis response: %w", err)
	}
	var decoded xttsResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode synthesis response: %w", err)
	}
	if decoded.AudioURL == "" {
		return Result{}, fmt.Errorf("synthesis service returned no audio url")
	}

	ref := decoded.AudioURL
	if strings.HasPrefix(ref, "/") {
		ref = s.endpoint + ref
	}
	return Result{AudioRef: ref}, nil
}
