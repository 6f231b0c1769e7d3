// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.APIKeyStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.HabitStore = (*Store)(nil)
var _ storage.FinanceStore = (*Store)(nil)
var _ storage.CurrencyStore = (*Store)(nil)
var _ storage.JournalStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.AssistantStore = (*Store)(nil)
var _ storage.TicketStore = (*Store)(nil)
var _ storage.SettingStore = (*Store)(nil)
var _ storage.MailStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, email, password_hash, display_name, timezone, plan, role, base_currency, display_currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.DisplayName, u.Timezone, u.Plan, u.Role, u.BaseCurrency, u.DisplayCurrency, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET email = $2, password_hash = $3, display_name = $4, timezone = $5, plan = $6, role = $7, base_currency = $8, display_currency = $9, updated_at = $10
		WHERE id = $1
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.DisplayName, u.Timezone, u.Plan, u.Role, u.BaseCurrency, u.DisplayCurrency, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, timezone, plan, role, base_currency, display_currency, created_at, updated_at
		FROM app_users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, timezone, plan, role, base_currency, display_currency, created_at, updated_at
		FROM app_users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Timezone, &u.Plan, &u.Role, &u.BaseCurrency, &u.DisplayCurrency, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, password_hash, display_name, timezone, plan, role, base_currency, display_currency, created_at, updated_at
		FROM app_users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Timezone, &u.Plan, &u.Role, &u.BaseCurrency, &u.DisplayCurrency, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM app_users`).Scan(&count)
	return count, err
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess user.Session) (user.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	sess.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return user.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.Session, error) {
	var sess user.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM app_sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return user.Session{}, err
	}
	return sess, nil
}

func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_sessions WHERE expires_at < $1
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- APIKeyStore ------------------------------------------------------------

func (s *Store) CreateAPIKey(ctx context.Context, k user.APIKey) (user.APIKey, error) {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_api_keys (id, user_id, name, key_hash, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, k.ID, k.UserID, k.Name, k.KeyHash, ptrToNullTime(k.LastUsedAt), k.CreatedAt)
	if err != nil {
		return user.APIKey{}, err
	}
	return k, nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (user.APIKey, error) {
	var (
		k        user.APIKey
		lastUsed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, key_hash, last_used_at, created_at
		FROM app_api_keys
		WHERE key_hash = $1
	`, keyHash).Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &lastUsed, &k.CreatedAt)
	if err != nil {
		return user.APIKey{}, err
	}
	k.LastUsedAt = nullTimeToPtr(lastUsed)
	return k, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]user.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, key_hash, last_used_at, created_at
		FROM app_api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.APIKey
	for rows.Next() {
		var (
			k        user.APIKey
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &lastUsed, &k.CreatedAt); err != nil {
			return nil, err
		}
		k.LastUsedAt = nullTimeToPtr(lastUsed)
		result = append(result, k)
	}
	return result, rows.Err()
}

func (s *Store) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_api_keys SET last_used_at = $2 WHERE id = $1
	`, id, usedAt.UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_api_keys WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- shared scan helpers ----------------------------------------------------

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func ptrToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return toNullTime(*t)
}

func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
