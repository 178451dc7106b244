package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicefusion-labs/voicefusion-core/internal/chat"
	"github.com/voicefusion-labs/voicefusion-core/internal/config"
	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
	"github.com/voicefusion-labs/voicefusion-core/internal/pipeline"
	"github.com/voicefusion-labs/voicefusion-core/internal/translate"
	"github.com/voicefusion-labs/voicefusion-core/internal/tts"
)

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, tts.Request) (tts.Result, error) {
	return tts.Result{}, errors.New("synthesis backend down")
}

type timeoutTranslator struct{}

func (timeoutTranslator) Translate(context.Context, translate.Request) (translate.Result, error) {
	return translate.Result{}, fmt.Errorf("call translation service: %w", context.DeadlineExceeded)
}

func newTestServer(t *testing.T, synth tts.Synthesizer) (*Server, *conversation.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	if synth == nil {
		synth = tts.NewMockSynth()
	}
	manager := conversation.NewManager()
	orch := pipeline.New(config.PipelineConfig{
		SystemInstruction: "You are VoiceFusion AI, a helpful voice assistant.",
		MaxWindowTurns:    20,
		TranslateTimeout:  2000,
		ChatTimeout:       2000,
		SynthesisTimeout:  2000,
	}, pipeline.Deps{
		Translator: translate.NewMockClient(),
		Completer:  chat.NewMockCompleter(),
		Synth:      synth,
	}, logger)
	return New(manager, orch, nil, nil, logger), manager
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCreateConversation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := postJSON(t, router, "/v1/conversations", struct{}{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[createConversationResponse](t, rec)
	if resp.ConversationID == "" {
		t.Fatal("expected conversation id in response")
	}
}

func TestProcessTurnSuccess(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()

	rec := postJSON(t, router, "/v1/conversations/"+conv.ID()+"/turns", turnRequest{UserText: "Hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[turnResponse](t, rec)
	if resp.FinalText != "[mock reply to Hello]" {
		t.Fatalf("unexpected final text %q", resp.FinalText)
	}
	if resp.AudioRef == "" || resp.Degraded {
		t.Fatalf("expected audio without degradation, got %+v", resp)
	}
	if conv.Len() != 2 {
		t.Fatalf("expected 2 turns in conversation, got %d", conv.Len())
	}
}

func TestProcessTurnDegraded(t *testing.T) {
	srv, manager := newTestServer(t, failingSynth{})
	router := srv.Router()
	conv := manager.Create()

	rec := postJSON(t, router, "/v1/conversations/"+conv.ID()+"/turns", turnRequest{UserText: "Hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[turnResponse](t, rec)
	if !resp.Degraded || resp.AudioRef != "" {
		t.Fatalf("expected degraded text-only response, got %+v", resp)
	}
}

func TestProcessTurnValidation(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()

	rec := postJSON(t, router, "/v1/conversations/"+conv.ID()+"/turns", turnRequest{UserText: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[errorResponse](t, rec)
	if resp.Error.Kind != string(pipeline.KindValidation) {
		t.Fatalf("unexpected error kind %q", resp.Error.Kind)
	}
}

func TestProcessTurnUnknownConversation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := postJSON(t, router, "/v1/conversations/nope/turns", turnRequest{UserText: "Hello"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProcessTurnBadBody(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/"+conv.ID()+"/turns", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProcessTurnConflict(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()
	if err := conv.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer conv.End()

	rec := postJSON(t, router, "/v1/conversations/"+conv.ID()+"/turns", turnRequest{UserText: "Hello"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[errorResponse](t, rec)
	if resp.Error.Kind != string(pipeline.KindConcurrentTurn) {
		t.Fatalf("unexpected error kind %q", resp.Error.Kind)
	}
}

func TestProcessTurnBackendTimeoutKeepsStageKind(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := conversation.NewManager()
	orch := pipeline.New(config.PipelineConfig{
		SystemInstruction: "You are VoiceFusion AI, a helpful voice assistant.",
		MaxWindowTurns:    20,
		TranslateTimeout:  2000,
		ChatTimeout:       2000,
		SynthesisTimeout:  2000,
	}, pipeline.Deps{
		Translator: timeoutTranslator{},
		Completer:  chat.NewMockCompleter(),
		Synth:      tts.NewMockSynth(),
	}, logger)
	router := New(manager, orch, nil, nil, logger).Router()
	conv := manager.Create()

	rec := postJSON(t, router, "/v1/conversations/"+conv.ID()+"/turns", turnRequest{
		UserText:   "Bonjour",
		SourceLang: "fr",
		TargetLang: "en",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[errorResponse](t, rec)
	// A backend timeout is still that stage's failure; the generic timeout
	// kind is reserved for caller cancellation.
	if resp.Error.Kind != string(pipeline.KindTranslation) {
		t.Fatalf("expected translation kind, got %q", resp.Error.Kind)
	}
}

func TestCallerCancellationMapsToTimeout(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/turns", nil)
	rec := httptest.NewRecorder()
	srv.writeTurnError(rec, req, context.Canceled)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	resp := decode[errorResponse](t, rec)
	if resp.Error.Kind != "timeout" {
		t.Fatalf("unexpected error kind %q", resp.Error.Kind)
	}
}

func TestHistoryWithoutDurableStore(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/"+conv.ID()+"/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[turnsResponse](t, rec)
	if resp.ConversationID != conv.ID() || len(resp.Turns) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestListTurns(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()
	conv.Append(conversation.RoleUser, "Hello")
	conv.Append(conversation.RoleAssistant, "Hi there!")

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/"+conv.ID()+"/turns", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[turnsResponse](t, rec)
	if resp.ConversationID != conv.ID() || len(resp.Turns) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestResetConversation(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()
	conv.Append(conversation.RoleUser, "Hello")

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/"+conv.ID()+"/reset", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	fresh, ok := manager.Get(conv.ID())
	if !ok || fresh.Len() != 0 {
		t.Fatal("expected an empty conversation after reset")
	}
}

func TestDeleteConversation(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	router := srv.Router()
	conv := manager.Create()

	req := httptest.NewRequest(http.MethodDelete, "/v1/conversations/"+conv.ID(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := manager.Get(conv.ID()); ok {
		t.Fatal("expected conversation removed")
	}
}

func TestHealthAndReady(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ready := false
	srv := New(conversation.NewManager(), nil, nil, func() bool { return ready }, logger)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rec.Code)
	}

	ready = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once ready, got %d", rec.Code)
	}
}
