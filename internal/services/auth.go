package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"assistant-backend/internal/middleware"
	"assistant-backend/internal/models"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo?id_token="

// Matches a bcrypt hash of a throwaway password; compared against when the
// account is missing so both failure paths cost one bcrypt verification.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	LinkGoogle(ctx context.Context, userID uuid.UUID, googleID string) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

// sessionStore keeps refresh tokens with a TTL.
type sessionStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// ErrSessionNotFound is returned by a sessionStore when the key is absent.
var ErrSessionNotFound = errors.New("session not found")

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore wraps a Redis client as the refresh-token store.
func NewRedisSessionStore(client *redis.Client) *redisSessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisSessionStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	return val, err
}

func (s *redisSessionStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

type AuthService struct {
	users          userStore
	sessions       sessionStore
	jwt            *middleware.JWTAuth
	googleClientID string

	// Override points for tests.
	tokenInfoURL string
	httpClient   *http.Client
}

func NewAuthService(users userStore, sessions sessionStore, jwt *middleware.JWTAuth, googleClientID string) *AuthService {
	return &AuthService{
		users:          users,
		sessions:       sessions,
		jwt:            jwt,
		googleClientID: googleClientID,
		tokenInfoURL:   googleTokenInfoURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	// Validate all fields at once
	fieldErrors := make(map[string]string)

	if req.FullName == "" {
		fieldErrors["full_name"] = "Full name is required"
	}
	if !emailRegex.MatchString(req.Email) {
		fieldErrors["email"] = "Invalid email format"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	// Check uniqueness
	_, err := s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, &ConflictError{Message: "Email already in use"}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hashStr := string(hash)
	user := &models.User{
		Email:        req.Email,
		PasswordHash: &hashStr,
		FullName:     req.FullName,
		AuthProvider: "local",
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login checks an email/password pair. Unknown email and wrong password come
// back as the same error so the endpoint cannot be used to probe which emails
// have accounts.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthTokens, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(req.Password))
			return nil, &UnauthorizedError{Message: "Invalid email or password"}
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		// Federated-only account. Same cost, same error.
		bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(req.Password))
		return nil, &UnauthorizedError{Message: "Invalid email or password"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &UnauthorizedError{Message: "Invalid email or password"}
	}

	s.touchLastLogin(ctx, user.ID)

	return s.issueTokens(ctx, user)
}

// GoogleLogin verifies a Google ID token and logs in or creates the user.
// Resolution order: google_id match, then email match (linking the Google
// identity to the existing account), then a new federated-only account.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*models.AuthTokens, error) {
	if s.googleClientID == "" {
		return nil, &ValidationError{Fields: map[string]string{"google": "Google sign-in is not configured"}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tokenInfoURL+idToken, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token verification request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify Google token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UnauthorizedError{Message: "Invalid Google token"}
	}

	var tokenInfo struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Aud   string `json:"aud"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, fmt.Errorf("failed to decode Google token info: %w", err)
	}

	// The token must have been issued for this application.
	if tokenInfo.Aud != s.googleClientID {
		return nil, &UnauthorizedError{Message: "Invalid Google token"}
	}

	if tokenInfo.Email == "" || tokenInfo.Sub == "" {
		return nil, &UnauthorizedError{Message: "Invalid Google token"}
	}

	user, err := s.users.GetByGoogleID(ctx, tokenInfo.Sub)
	if err == nil {
		s.touchLastLogin(ctx, user.ID)
		return s.issueTokens(ctx, user)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	user, err = s.users.GetByEmail(ctx, tokenInfo.Email)
	if err == nil {
		// Existing email account: attach the Google identity.
		if err := s.users.LinkGoogle(ctx, user.ID, tokenInfo.Sub); err != nil {
			return nil, err
		}
		s.touchLastLogin(ctx, user.ID)
		return s.issueTokens(ctx, user)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	googleID := tokenInfo.Sub
	newUser := &models.User{
		Email:        tokenInfo.Email,
		FullName:     tokenInfo.Name,
		AuthProvider: "google",
		GoogleID:     &googleID,
	}

	if err := s.users.Create(ctx, newUser); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, newUser)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	userIDStr, err := s.sessions.Get(ctx, "refresh:"+refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, &UnauthorizedError{Message: "Invalid or expired refresh token. Please log in again."}
		}
		return nil, err
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID: %w", err)
	}

	// Rotation: the old token dies with its use.
	if err := s.sessions.Del(ctx, "refresh:"+refreshToken); err != nil {
		log.Printf("failed to revoke rotated refresh token for user %s: %v", userIDStr, err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Del(ctx, "refresh:"+refreshToken)
}

// touchLastLogin tracks the login time. Best effort: a failed update must
// not fail the login, but it is logged rather than dropped.
func (s *AuthService) touchLastLogin(ctx context.Context, userID uuid.UUID) {
	if err := s.users.UpdateLastLogin(ctx, userID); err != nil {
		log.Printf("failed to update last login for user %s: %v", userID, err)
	}
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateToken(64)
	if err != nil {
		return nil, err
	}

	// Refresh tokens live 7 days
	err = s.sessions.Set(ctx, "refresh:"+refreshToken, user.ID.String(), 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    900,
	}, nil
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	return nil
}
