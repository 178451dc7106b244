package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type marianClient struct {
	endpoint   string
	httpClient *http.Client
	maxRetries int
}

type marianRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang"`
}

type marianResponse struct {
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
}

// NewMarianClient talks to an opus-mt translation service over HTTP. Retries
// are bounded: transport errors and 5xx responses are retried up to
// maxRetries times with exponential backoff, client errors fail immediately.
func NewMarianClient(endpoint string, timeout time.Duration, maxRetries int) Client {
	return &marianClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

func (c *marianClient) Translate(ctx context.Context, req Request) (Result, error) {
	payload := marianRequest{Text: req.Text, TargetLang: req.TargetLang}
	if req.SourceLang != "" && req.SourceLang != SourceAuto {
		payload.SourceLang = req.SourceLang
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal translation request: %w", err)
	}

	operation := func() (Result, error) {
		return c.post(ctx, body)
	}
	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (c *marianClient) post(ctx context.Context, body []byte) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return Result{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("call translation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{}, fmt.Errorf("translation service returned %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return Result{}, backoff.Permanent(fmt.Errorf("translation service returned %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read translation response: %w", err)
	}
	var decoded marianResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Result{}, backoff.Permanent(fmt.Errorf("decode translation response: %w", err))
	}
	if strings.TrimSpace(decoded.TranslatedText) == "" {
		return Result{}, backoff.Permanent(fmt.Errorf("translation service returned empty text"))
	}
	return Result{TranslatedText: decoded.TranslatedText, DetectedSource: decoded.SourceLang}, nil
}
