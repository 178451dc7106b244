package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
	"github.com/voicefusion-labs/voicefusion-core/internal/pipeline"
)

type createConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

type turnRequest struct {
	UserText   string `json:"user_text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
}

type turnResponse struct {
	FinalText string `json:"final_text"`
	AudioRef  string `json:"audio_ref,omitempty"`
	Degraded  bool   `json:"degraded"`
}

type turnsResponse struct {
	ConversationID string              `json:"conversation_id"`
	Turns          []conversation.Turn `json:"turns"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, _ *http.Request) {
	conv := s.manager.Create()
	s.writeJSON(w, http.StatusCreated, createConversationResponse{ConversationID: conv.ID()})
}

func (s *Server) handleProcessTurn(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	conv, ok := s.manager.Get(conversationID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "unknown conversation")
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, string(pipeline.KindValidation), "invalid request body")
		return
	}

	outcome, err := s.orch.ProcessTurn(r.Context(), conv, req.UserText, pipeline.Options{
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
	})
	if err != nil {
		s.writeTurnError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, turnResponse{
		FinalText: outcome.FinalText,
		AudioRef:  outcome.AudioRef,
		Degraded:  outcome.Degraded,
	})
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	conv, ok := s.manager.Get(conversationID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "unknown conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, turnsResponse{
		ConversationID: conversationID,
		Turns:          conv.Turns(),
	})
}

// handleHistory serves the durable turn timeline, which survives process
// restarts unlike the in-memory log behind /turns.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, turnsResponse{ConversationID: conversationID})
		return
	}
	turns, err := s.store.ListTurns(r.Context(), conversationID, 200)
	if err != nil {
		s.logger.Error("failed to list history", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "internal", "failed to read history")
		return
	}
	s.writeJSON(w, http.StatusOK, turnsResponse{
		ConversationID: conversationID,
		Turns:          turns,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if _, ok := s.manager.Get(conversationID); !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "unknown conversation")
		return
	}
	s.manager.Reset(conversationID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	s.manager.Remove(conversationID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeTurnError(w http.ResponseWriter, r *http.Request, err error) {
	// The stage kind wins even when the chain holds a context error: a
	// translation backend timeout is still a translation failure to the
	// caller. Only untagged errors are caller cancellations.
	kind, ok := pipeline.KindOf(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusGatewayTimeout, "timeout", "turn was cancelled or timed out")
			return
		}
		s.logger.Error("turn failed with untagged error", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	status := http.StatusBadGateway
	switch kind {
	case pipeline.KindValidation:
		status = http.StatusBadRequest
	case pipeline.KindConcurrentTurn:
		status = http.StatusConflict
	}
	s.logger.Warn("turn failed",
		slog.String("path", r.URL.Path),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()))
	s.writeError(w, status, string(kind), err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}
