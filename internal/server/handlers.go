package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/auth"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/longkey1/lome/internal/sse"
)

// Stream event names.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// ChunkEvent is the data of a chunk event.
type ChunkEvent struct {
	Content string `json:"content"`
}

// SessionResponse is returned by the session endpoints.
type SessionResponse struct {
	User  *lome.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
	Model string `json:"model,omitempty"`
}

// StreamRequest is the body of POST /api/conversations/{id}/stream.
type StreamRequest struct {
	Model string `json:"model,omitempty"`
}

func userID(r *http.Request) string {
	if user := auth.UserFrom(r.Context()); user != nil {
		return user.ID
	}
	return ""
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		err = errors.New("internal server error")
	}
	respondError(w, status, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, errors.New("no session"))
		return
	}
	respondJSON(w, http.StatusOK, SessionResponse{User: user})
}

func (s *Server) handleDevSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := auth.Persona(req.Email)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if s.issuer == nil {
		s.fail(w, r, auth.ErrNoSecret)
		return
	}
	token, err := s.issuer.Issue(*user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SessionResponse{User: user, Token: token})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.svc.ListConversations(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	conv, err := s.svc.CreateConversation(r.Context(), userID(r), req.Title, req.Model)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.svc.GetConversation(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	var update service.ConversationUpdate
	if err := decodeJSON(r, &update); err != nil {
		s.fail(w, r, err)
		return
	}

	conv, err := s.svc.UpdateConversation(r.Context(), userID(r), chi.URLParam(r, "id"), update)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteConversation(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.svc.Messages(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var msg lome.NewMessage
	if err := decodeJSON(r, &msg); err != nil {
		s.fail(w, r, err)
		return
	}
	if msg.Role == "" {
		msg.Role = lome.RoleUser
	}

	stored, err := s.svc.SendMessage(r.Context(), userID(r), chi.URLParam(r, "id"), msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, stored)
}

// handleStream streams the assistant reply as chunk events followed by one
// done or error event. Errors found before streaming starts use the JSON envelope.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req StreamRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	id := chi.URLParam(r, "id")
	if _, err := s.svc.GetConversation(r.Context(), userID(r), id); err != nil {
		s.fail(w, r, err)
		return
	}

	stream, err := sse.NewWriter(w)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	reply, err := s.svc.StreamReply(r.Context(), userID(r), id, strings.TrimSpace(req.Model), func(chunk string) {
		if err := stream.Send(EventChunk, ChunkEvent{Content: chunk}); err != nil {
			s.logger.Debug("failed to write chunk", "conversation_id", id, "error", err)
		}
	})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		_ = stream.Send(EventError, errorResponse{Error: err.Error()})
		return
	}
	_ = stream.Send(EventDone, reply)
}
