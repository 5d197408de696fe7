// Package handlers provides HTTP handlers for the assistant API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/talentlink/assistant/internal/chat"
	"github.com/talentlink/assistant/internal/content"
	"github.com/talentlink/assistant/internal/observability"
)

// MessageRequiredError is the only error message the chat endpoint returns.
const MessageRequiredError = "Message is required"

// Replier answers a chat message.
type Replier interface {
	Reply(ctx context.Context, message string) chat.Reply
}

// ChatHandler handles chat requests.
type ChatHandler struct {
	logger        *observability.Logger
	replier       Replier
	index         *content.Index
	responseField string
	maxBodyBytes  int64
}

// NewChatHandler creates a new chat handler. responseField is the JSON key
// used for the answer ("response" or "reply").
func NewChatHandler(logger *observability.Logger, replier Replier, index *content.Index, responseField string, maxBodyBytes int64) *ChatHandler {
	if responseField == "" {
		responseField = "response"
	}
	return &ChatHandler{
		logger:        logger,
		replier:       replier,
		index:         index,
		responseField: responseField,
		maxBodyBytes:  maxBodyBytes,
	}
}

// ChatRequestDTO is the body of POST /api/chat.
type ChatRequestDTO struct {
	Message string `json:"message"`
}

// SectionDTO describes one content section.
type SectionDTO struct {
	ID       string   `json:"id"`
	Keywords []string `json:"keywords"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithContext(r.Context()).Debug().Err(err).Msg("Invalid chat request body")
		h.writeError(w, http.StatusBadRequest, MessageRequiredError)
		return
	}

	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, MessageRequiredError)
		return
	}

	reply := h.replier.Reply(r.Context(), req.Message)

	h.writeJSON(w, http.StatusOK, map[string]string{h.responseField: reply.Text})
}

// Sections handles GET /api/chat/sections.
func (h *ChatHandler) Sections(w http.ResponseWriter, r *http.Request) {
	sections := h.index.Sections()
	out := make([]SectionDTO, 0, len(sections))
	for _, s := range sections {
		out = append(out, SectionDTO{ID: s.ID, Keywords: s.Keywords})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"sections": out})
}

func (h *ChatHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write response")
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
