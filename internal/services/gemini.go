package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"assistant-backend/internal/models"
)

// GeminiService is the upstream completion client. One call per chat turn,
// bounded by a timeout, with a small retry budget for transient failures.
type GeminiService struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	retries   int

	// Override point for tests.
	send func(ctx context.Context, systemPrompt string, history []*genai.Content, msg genai.Part) (*genai.GenerateContentResponse, error)
}

func NewGeminiService(apiKey, modelName string, timeout time.Duration, retries int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	s := &GeminiService{
		client:    client,
		modelName: modelName,
		timeout:   timeout,
		retries:   retries,
	}
	s.send = s.sendOnce
	return s, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// Complete sends the assembled conversation to Gemini and returns the reply
// text. The final message must be the new user entry; everything before it is
// replayed as chat history. Retries cover rate limits, 5xx responses and
// transport errors; auth and invalid-argument failures from the upstream are
// returned immediately.
func (s *GeminiService) Complete(ctx context.Context, systemPrompt string, messages []models.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", &UpstreamError{Cause: errors.New("no messages to send")}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	history := make([]*genai.Content, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		history = append(history, &genai.Content{
			Role:  upstreamRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	last := genai.Text(messages[len(messages)-1].Content)

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", &UpstreamError{Cause: ctx.Err()}
			}
			backoff *= 2
		}

		// Each attempt gets its own copy of the history. SendMessage appends
		// the outgoing message to the session history before the RPC and
		// keeps it there on failure, so a session reused across attempts
		// would resend the user turn once per retry.
		resp, err := s.send(ctx, systemPrompt, append([]*genai.Content(nil), history...), last)
		if err == nil {
			text := extractText(resp)
			if text == "" {
				return "", &UpstreamError{Cause: errors.New("empty completion response")}
			}
			return text, nil
		}

		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	return "", &UpstreamError{Cause: lastErr}
}

// sendOnce performs one upstream request over a fresh chat session.
func (s *GeminiService) sendOnce(ctx context.Context, systemPrompt string, history []*genai.Content, msg genai.Part) (*genai.GenerateContentResponse, error) {
	model := s.client.GenerativeModel(s.modelName)
	model.SetTemperature(0.7)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	session := model.StartChat()
	session.History = history
	return session.SendMessage(ctx, msg)
}

// upstreamRole maps stored roles to the Gemini chat roles.
func upstreamRole(role string) string {
	if role == models.RoleAssistant {
		return "model"
	}
	return "user"
}

// isRetryable reports whether an upstream failure is worth another attempt.
// Client-side faults (bad request, bad credentials, missing resource) are
// final.
func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return true
		case apiErr.Code >= 500:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Transport-level failure.
	return true
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
