// Package users handles registration, login, sessions, API keys, profile
// management and the admin user surface.
package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/services/currency"
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

var (
	// ErrInvalidCredentials covers wrong passwords, unknown emails and dead
	// tokens alike so callers cannot probe which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken signals a duplicate registration.
	ErrEmailTaken = errors.New("email already registered")
)

const minPasswordLength = 8

// apiKeyPrefix marks plaintext API keys so leaked keys are recognisable.
const apiKeyPrefix = "lk_"

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Service implements account and authentication operations.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	apiKeys  storage.APIKeyStore
	log      *logger.Logger

	jwtSecret  []byte
	sessionTTL time.Duration

	mail  *mailer.Service
	rates *currency.Service
}

// New constructs a users service. A non-positive session TTL falls back to
// 24 hours.
func New(users storage.UserStore, sessions storage.SessionStore, apiKeys storage.APIKeyStore, jwtSecret string, sessionTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		apiKeys:    apiKeys,
		log:        log,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
	}
}

// AttachMailer enables the welcome email on registration.
func (s *Service) AttachMailer(mail *mailer.Service) {
	s.mail = mail
}

// AttachCurrency enables display-currency validation on profile updates.
func (s *Service) AttachCurrency(rates *currency.Service) {
	s.rates = rates
}

// Register creates an account and logs it in. The first account on the
// instance gets the admin role.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (user.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, "", fmt.Errorf("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return user.User{}, "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return user.User{}, "", ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return user.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	role := user.RoleMember
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return user.User{}, "", err
	}
	if count == 0 {
		role = user.RoleAdmin
	}

	u, err := s.users.CreateUser(ctx, user.User{
		Email:           email,
		PasswordHash:    string(hash),
		DisplayName:     displayName,
		Timezone:        "UTC",
		Plan:            user.PlanFree,
		Role:            role,
		BaseCurrency:    user.BaseCurrency,
		DisplayCurrency: user.BaseCurrency,
	})
	if err != nil {
		return user.User{}, "", err
	}

	token, err := s.issueSession(ctx, u)
	if err != nil {
		return user.User{}, "", err
	}

	if s.mail.Enabled() {
		_, _ = s.mail.Send(ctx, u.ID, u.Email, mailer.TemplateWelcome, map[string]string{"name": u.DisplayName})
	}

	s.log.WithField("user_id", u.ID).
		WithField("role", u.Role).
		Info("user registered")
	return u, token, nil
}

// Login verifies the password and issues a fresh token and session.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, "", ErrInvalidCredentials
		}
		return user.User{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueSession(ctx, u)
	if err != nil {
		return user.User{}, "", err
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

// Logout removes the session for a token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.sessions.DeleteSessionByTokenHash(ctx, hashToken(token))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

// Authenticate resolves a bearer token to its user. The token must both
// verify as a JWT and have a live session row.
func (s *Service) Authenticate(ctx context.Context, token string) (user.User, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return user.User{}, ErrInvalidCredentials
	}

	sess, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, err
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		_ = s.sessions.DeleteSessionByTokenHash(ctx, sess.TokenHash)
		return user.User{}, ErrInvalidCredentials
	}

	return s.users.GetUser(ctx, sess.UserID)
}

// AuthenticateAPIKey resolves an API key to its user and stamps LastUsedAt.
func (s *Service) AuthenticateAPIKey(ctx context.Context, key string) (user.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return user.User{}, ErrInvalidCredentials
	}

	k, err := s.apiKeys.GetAPIKeyByHash(ctx, hashToken(key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, err
	}
	if err := s.apiKeys.TouchAPIKey(ctx, k.ID, time.Now().UTC()); err != nil {
		s.log.WithError(err).WithField("key_id", k.ID).Warn("touch api key failed")
	}

	return s.users.GetUser(ctx, k.UserID)
}

// CreateAPIKey mints a key for the user. The plaintext is returned exactly
// once and only its hash is stored.
func (s *Service) CreateAPIKey(ctx context.Context, userID, name string) (user.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return user.APIKey{}, "", fmt.Errorf("name is required")
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return user.APIKey{}, "", fmt.Errorf("generate key: %w", err)
	}
	plaintext := apiKeyPrefix + hex.EncodeToString(raw)

	k, err := s.apiKeys.CreateAPIKey(ctx, user.APIKey{
		UserID:  userID,
		Name:    name,
		KeyHash: hashToken(plaintext),
	})
	if err != nil {
		return user.APIKey{}, "", err
	}

	s.log.WithField("user_id", userID).
		WithField("key_id", k.ID).
		Info("api key created")
	return k, plaintext, nil
}

// ListAPIKeys returns the user's keys, hashes excluded by the model.
func (s *Service) ListAPIKeys(ctx context.Context, userID string) ([]user.APIKey, error) {
	return s.apiKeys.ListAPIKeys(ctx, userID)
}

// DeleteAPIKey removes one of the user's own keys.
func (s *Service) DeleteAPIKey(ctx context.Context, userID, keyID string) error {
	keys, err := s.apiKeys.ListAPIKeys(ctx, userID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.ID == keyID {
			return s.apiKeys.DeleteAPIKey(ctx, keyID)
		}
	}
	return fmt.Errorf("api key %s: %w", keyID, sql.ErrNoRows)
}

// GetUser returns one user by id.
func (s *Service) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.users.GetUser(ctx, id)
}

// GetUserByEmail returns one user by login email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// UpdateProfile applies the provided profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, displayName, timezone, displayCurrency *string) (user.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}

	if displayName != nil {
		if trimmed := strings.TrimSpace(*displayName); trimmed != "" {
			u.DisplayName = trimmed
		} else {
			return user.User{}, fmt.Errorf("display_name cannot be empty")
		}
	}
	if timezone != nil {
		trimmed := strings.TrimSpace(*timezone)
		if _, err := time.LoadLocation(trimmed); err != nil || trimmed == "" {
			return user.User{}, fmt.Errorf("unknown timezone %q", *timezone)
		}
		u.Timezone = trimmed
	}
	if displayCurrency != nil {
		code := strings.ToUpper(strings.TrimSpace(*displayCurrency))
		if code == "" {
			return user.User{}, fmt.Errorf("display_currency cannot be empty")
		}
		if s.rates != nil {
			if _, err := s.rates.GetRate(ctx, code); err != nil {
				return user.User{}, fmt.Errorf("no rate for display currency %s", code)
			}
		}
		u.DisplayCurrency = code
	}

	u, err = s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("profile updated")
	return u, nil
}

// ChangePassword swaps the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}

// ListUsers returns every account. Admin surface only.
func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}

// SetPlan moves a user to another plan.
func (s *Service) SetPlan(ctx context.Context, userID, plan string) (user.User, error) {
	if !user.KnownPlan(plan) {
		return user.User{}, fmt.Errorf("unknown plan %q", plan)
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if u.Plan == plan {
		return u, nil
	}

	u.Plan = plan
	u, err = s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", userID).
		WithField("plan", plan).
		Info("plan changed")
	return u, nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, userID, role string) (user.User, error) {
	if role != user.RoleMember && role != user.RoleAdmin {
		return user.User{}, fmt.Errorf("unknown role %q", role)
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if u.Role == role {
		return u, nil
	}

	u.Role = role
	u, err = s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", userID).
		WithField("role", role).
		Info("role changed")
	return u, nil
}

// PruneSessions deletes expired sessions and reports how many went.
func (s *Service) PruneSessions(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpiredSessions(ctx, time.Now().UTC())
}

func (s *Service) issueSession(ctx context.Context, u user.User) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if _, err := s.sessions.CreateSession(ctx, user.Session{
		UserID:    u.ID,
		TokenHash: hashToken(signed),
		ExpiresAt: now.Add(s.sessionTTL),
	}); err != nil {
		return "", err
	}
	return signed, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
