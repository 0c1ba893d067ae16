package models

import (
	"time"

	"github.com/google/uuid"
)

// Turn roles. These are stored verbatim and forwarded to the upstream model
// unchanged.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one stored message exchange unit: either the user's
// message or the assistant's reply. Turns are append-only and never mutated;
// Seq gives strict per-table append order even when two turns share a
// created_at tick.
type ConversationTurn struct {
	Seq       int64     `json:"seq"`
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the role/content pair sent to the upstream completion API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// HistoryResponse lists a user's stored turns for display.
type HistoryResponse struct {
	Turns []ConversationTurn `json:"turns"`
}
