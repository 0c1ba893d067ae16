package services

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"assistant-backend/internal/models"
)

type turnStore interface {
	Append(ctx context.Context, userID uuid.UUID, role, content string) (*models.ConversationTurn, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationTurn, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// CompletionClient is the boundary to the external text-generation service.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt string, messages []models.ChatMessage) (string, error)
}

// AssistantService runs one chat turn end to end: rebuild the account's
// history, append the new message, call the upstream model, and record both
// turns.
//
// The user turn is persisted eagerly, before the upstream call. When the
// upstream call then fails the history is left with a trailing user turn and
// no reply; that row is the audit trail of the attempt, and History exposes
// it rather than hiding it.
type AssistantService struct {
	turns        turnStore
	completer    CompletionClient
	systemPrompt string

	// Chat turns for the same account are serialized so concurrent requests
	// cannot interleave their history reads and writes.
	mu        sync.Mutex
	userLocks map[uuid.UUID]*accountLock
}

// accountLock is refcounted so the lock map only holds entries for accounts
// with a request in flight.
type accountLock struct {
	mu   sync.Mutex
	refs int
}

func NewAssistantService(turns turnStore, completer CompletionClient, systemPrompt string) *AssistantService {
	return &AssistantService{
		turns:        turns,
		completer:    completer,
		systemPrompt: systemPrompt,
		userLocks:    make(map[uuid.UUID]*accountLock),
	}
}

func (s *AssistantService) lockUser(userID uuid.UUID) *accountLock {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &accountLock{}
		s.userLocks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *AssistantService) unlockUser(userID uuid.UUID, l *accountLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.userLocks, userID)
	}
	s.mu.Unlock()
}

// Assemble rebuilds the upstream payload for one account: the full stored
// history oldest-first, roles preserved verbatim, with the new message as the
// final user entry. The new entry is not persisted here. History is never
// truncated or summarized; every turn resends all of it.
func (s *AssistantService) Assemble(ctx context.Context, userID uuid.UUID, message string) ([]models.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	turns, err := s.turns.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	messages := make([]models.ChatMessage, 0, len(turns)+1)
	for _, t := range turns {
		messages = append(messages, models.ChatMessage{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: message})

	return messages, nil
}

// Chat processes one chat turn and returns the assistant's reply.
func (s *AssistantService) Chat(ctx context.Context, userID uuid.UUID, message string) (string, error) {
	lock := s.lockUser(userID)
	defer s.unlockUser(userID, lock)

	messages, err := s.Assemble(ctx, userID, message)
	if err != nil {
		return "", err
	}

	// Eager persistence: the user turn is on record whether or not the
	// upstream call succeeds.
	userMessage := messages[len(messages)-1].Content
	if _, err := s.turns.Append(ctx, userID, models.RoleUser, userMessage); err != nil {
		return "", err
	}

	reply, err := s.completer.Complete(ctx, s.systemPrompt, messages)
	if err != nil {
		log.Printf("upstream completion failed for user %s: %v", userID, err)
		return "", err
	}

	if _, err := s.turns.Append(ctx, userID, models.RoleAssistant, reply); err != nil {
		return "", err
	}

	return reply, nil
}

// History returns the account's stored turns, oldest first.
func (s *AssistantService) History(ctx context.Context, userID uuid.UUID) ([]models.ConversationTurn, error) {
	return s.turns.ListByUser(ctx, userID)
}

// ClearHistory deletes every stored turn for the account. Idempotent.
func (s *AssistantService) ClearHistory(ctx context.Context, userID uuid.UUID) error {
	lock := s.lockUser(userID)
	defer s.unlockUser(userID, lock)

	return s.turns.Clear(ctx, userID)
}
