package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"assistant-backend/internal/middleware"
	"assistant-backend/internal/models"
	"assistant-backend/internal/services"
)

type mockAssistant struct {
	chatFn    func(ctx context.Context, userID uuid.UUID, message string) (string, error)
	historyFn func(ctx context.Context, userID uuid.UUID) ([]models.ConversationTurn, error)
	clearFn   func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockAssistant) Chat(ctx context.Context, userID uuid.UUID, message string) (string, error) {
	return m.chatFn(ctx, userID, message)
}

func (m *mockAssistant) History(ctx context.Context, userID uuid.UUID) ([]models.ConversationTurn, error) {
	return m.historyFn(ctx, userID)
}

func (m *mockAssistant) ClearHistory(ctx context.Context, userID uuid.UUID) error {
	return m.clearFn(ctx, userID)
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestChatHandler_Chat(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		body       string
		chatFn     func(ctx context.Context, userID uuid.UUID, message string) (string, error)
		wantStatus int
		wantCode   string
	}{
		{
			name: "successful turn",
			body: `{"message":"what can you do?"}`,
			chatFn: func(ctx context.Context, id uuid.UUID, message string) (string, error) {
				if id != userID {
					t.Errorf("handler passed user %s, expected %s", id, userID)
				}
				if message != "what can you do?" {
					t.Errorf("unexpected message %q", message)
				}
				return "I can help with marketing.", nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "empty message",
			body: `{"message":""}`,
			chatFn: func(ctx context.Context, id uuid.UUID, message string) (string, error) {
				return "", &services.ValidationError{Fields: map[string]string{"message": "Message is required"}}
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "malformed body",
			body:       `{"message":`,
			chatFn:     nil,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "upstream failure masked",
			body: `{"message":"hello"}`,
			chatFn: func(ctx context.Context, id uuid.UUID, message string) (string, error) {
				return "", &services.UpstreamError{Cause: errors.New("rpc error: quota exceeded for project 1234")}
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(&mockAssistant{chatFn: tt.chatFn})
			req := authedRequest(http.MethodPost, "/api/v1/chat", tt.body, userID)
			rec := httptest.NewRecorder()

			h.Chat(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			if tt.wantCode != "" {
				var resp models.ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode error response: %v", err)
				}
				if resp.Error.Code != tt.wantCode {
					t.Errorf("expected error code %q, got %q", tt.wantCode, resp.Error.Code)
				}
			}
		})
	}
}

func TestChatHandler_UpstreamErrorHidesCause(t *testing.T) {
	h := NewChatHandler(&mockAssistant{
		chatFn: func(ctx context.Context, id uuid.UUID, message string) (string, error) {
			return "", &services.UpstreamError{Cause: errors.New("api key AIza-secret rejected")}
		},
	})
	req := authedRequest(http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, uuid.New())
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	if strings.Contains(rec.Body.String(), "AIza-secret") {
		t.Error("upstream error detail leaked to the caller")
	}
}

func TestChatHandler_History(t *testing.T) {
	userID := uuid.New()
	now := time.Now()
	h := NewChatHandler(&mockAssistant{
		historyFn: func(ctx context.Context, id uuid.UUID) ([]models.ConversationTurn, error) {
			return []models.ConversationTurn{
				{Seq: 1, ID: uuid.New(), UserID: id, Role: models.RoleUser, Content: "hi", CreatedAt: now},
				{Seq: 2, ID: uuid.New(), UserID: id, Role: models.RoleAssistant, Content: "hello", CreatedAt: now},
			}, nil
		},
	})
	req := authedRequest(http.MethodGet, "/api/v1/chat/history", "", userID)
	rec := httptest.NewRecorder()

	h.History(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(resp.Turns))
	}
	if resp.Turns[0].Role != models.RoleUser || resp.Turns[1].Role != models.RoleAssistant {
		t.Errorf("turns out of order: %+v", resp.Turns)
	}
}

func TestChatHandler_HistoryEmptyIsList(t *testing.T) {
	h := NewChatHandler(&mockAssistant{
		historyFn: func(ctx context.Context, id uuid.UUID) ([]models.ConversationTurn, error) {
			return []models.ConversationTurn{}, nil
		},
	})
	req := authedRequest(http.MethodGet, "/api/v1/chat/history", "", uuid.New())
	rec := httptest.NewRecorder()

	h.History(rec, req)

	if !strings.Contains(rec.Body.String(), `"turns":[]`) {
		t.Errorf("empty history must serialize as an empty list, got %s", rec.Body.String())
	}
}

func TestChatHandler_ClearHistory(t *testing.T) {
	userID := uuid.New()
	cleared := uuid.Nil
	h := NewChatHandler(&mockAssistant{
		clearFn: func(ctx context.Context, id uuid.UUID) error {
			cleared = id
			return nil
		},
	})
	req := authedRequest(http.MethodDelete, "/api/v1/chat/history", "", userID)
	rec := httptest.NewRecorder()

	h.ClearHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cleared != userID {
		t.Errorf("cleared wrong account: %s", cleared)
	}
}
