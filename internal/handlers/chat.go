package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"assistant-backend/internal/middleware"
	"assistant-backend/internal/models"
)

type assistantService interface {
	Chat(ctx context.Context, userID uuid.UUID, message string) (string, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.ConversationTurn, error)
	ClearHistory(ctx context.Context, userID uuid.UUID) error
}

type ChatHandler struct {
	assistant assistantService
}

func NewChatHandler(assistant assistantService) *ChatHandler {
	return &ChatHandler{assistant: assistant}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	reply, err := h.assistant.Chat(r.Context(), userID, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	turns, err := h.assistant.History(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.HistoryResponse{Turns: turns})
}

func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.assistant.ClearHistory(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation history cleared"})
}
