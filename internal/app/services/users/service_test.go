package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	currencysvc "github.com/lifeos-hq/lifeos/internal/app/services/currency"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, store, "test-secret", time.Hour, nil), store
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, token, err := svc.Register(ctx, "Ada@Example.com", "supersecret", "Ada")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.Role != user.RoleAdmin || first.Plan != user.PlanFree {
		t.Fatalf("first user should be a free admin: %#v", first)
	}
	if first.Email != "ada@example.com" {
		t.Fatalf("email not normalised: %q", first.Email)
	}
	if token == "" {
		t.Fatalf("expected a token")
	}

	authed, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != first.ID {
		t.Fatalf("token resolved to wrong user")
	}

	second, _, err := svc.Register(ctx, "b@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.Role != user.RoleMember {
		t.Fatalf("second user should be a member, got %s", second.Role)
	}
	if second.DisplayName != "b" {
		t.Fatalf("display name should default to the email local part, got %q", second.DisplayName)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "supersecret", ""); err == nil {
		t.Fatalf("expected error for invalid email")
	}
	if _, _, err := svc.Register(ctx, "a@example.com", "short", ""); err == nil {
		t.Fatalf("expected error for short password")
	}

	if _, _, err := svc.Register(ctx, "a@example.com", "supersecret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "A@EXAMPLE.COM", "supersecret", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "a@example.com", "supersecret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, wrongPassword := svc.Login(ctx, "a@example.com", "wrong-password")
	_, _, unknownEmail := svc.Login(ctx, "nobody@example.com", "supersecret")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("both failures must be ErrInvalidCredentials: %v / %v", wrongPassword, unknownEmail)
	}

	u, token, err := svc.Login(ctx, "a@example.com", "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Email != "a@example.com" || token == "" {
		t.Fatalf("unexpected login result")
	}
}

func TestLogoutKillsSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, token, err := svc.Register(ctx, "a@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// The JWT itself is still within its validity window; only the session
	// row is gone.
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after logout, got %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout should be idempotent: %v", err)
	}
}

func TestAuthenticateRejectsForgedToken(t *testing.T) {
	svc, _ := newTestService(t)
	other := New(memory.New(), memory.New(), memory.New(), "other-secret", time.Hour, nil)
	ctx := context.Background()

	_, token, err := other.Register(ctx, "a@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("foreign token must not authenticate, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "not-a-token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("garbage token must not authenticate, got %v", err)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, "a@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	key, plaintext, err := svc.CreateAPIKey(ctx, u.ID, "cli")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if !strings.HasPrefix(plaintext, "lk_") || len(plaintext) != len("lk_")+32 {
		t.Fatalf("unexpected key shape: %q", plaintext)
	}

	authed, err := svc.AuthenticateAPIKey(ctx, plaintext)
	if err != nil {
		t.Fatalf("authenticate key: %v", err)
	}
	if authed.ID != u.ID {
		t.Fatalf("key resolved to wrong user")
	}

	keys, err := svc.ListAPIKeys(ctx, u.ID)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 || keys[0].LastUsedAt == nil {
		t.Fatalf("expected one touched key, got %#v", keys)
	}

	if err := svc.DeleteAPIKey(ctx, "someone-else", key.ID); err == nil {
		t.Fatalf("foreign delete should fail")
	}
	if err := svc.DeleteAPIKey(ctx, u.ID, key.ID); err != nil {
		t.Fatalf("delete key: %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(ctx, plaintext); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("deleted key must not authenticate, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, store := newTestService(t)
	svc.AttachCurrency(currencysvc.New(store, nil))
	ctx := context.Background()

	u, _, err := svc.Register(ctx, "a@example.com", "supersecret", "Ada")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	tz := "Africa/Lagos"
	updated, err := svc.UpdateProfile(ctx, u.ID, nil, &tz, nil)
	if err != nil {
		t.Fatalf("update timezone: %v", err)
	}
	if updated.Timezone != "Africa/Lagos" {
		t.Fatalf("timezone not applied: %q", updated.Timezone)
	}

	bad := "Mars/Olympus"
	if _, err := svc.UpdateProfile(ctx, u.ID, nil, &bad, nil); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}

	unknown := "USD"
	if _, err := svc.UpdateProfile(ctx, u.ID, nil, nil, &unknown); err == nil {
		t.Fatalf("expected error for display currency without a stored rate")
	}

	ngn := "ngn"
	updated, err = svc.UpdateProfile(ctx, u.ID, nil, nil, &ngn)
	if err != nil {
		t.Fatalf("update display currency: %v", err)
	}
	if updated.DisplayCurrency != "NGN" {
		t.Fatalf("display currency not normalised: %q", updated.DisplayCurrency)
	}

	empty := " "
	if _, err := svc.UpdateProfile(ctx, u.ID, &empty, nil, nil); err == nil {
		t.Fatalf("expected error for blank display name")
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, "a@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "wrong", "anothersecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "supersecret", "short"); err == nil {
		t.Fatalf("expected error for short new password")
	}
	if err := svc.ChangePassword(ctx, u.ID, "supersecret", "anothersecret"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, _, err := svc.Login(ctx, "a@example.com", "supersecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@example.com", "anothersecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestSetPlanAndRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, "a@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.SetPlan(ctx, u.ID, "platinum"); err == nil {
		t.Fatalf("expected error for unknown plan")
	}
	upgraded, err := svc.SetPlan(ctx, u.ID, user.PlanPro)
	if err != nil {
		t.Fatalf("set plan: %v", err)
	}
	if upgraded.Plan != user.PlanPro {
		t.Fatalf("plan not applied: %q", upgraded.Plan)
	}

	if _, err := svc.SetRole(ctx, u.ID, "owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	demoted, err := svc.SetRole(ctx, u.ID, user.RoleMember)
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if demoted.Role != user.RoleMember {
		t.Fatalf("role not applied: %q", demoted.Role)
	}
}

func TestPruneSessions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, "a@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.CreateSession(ctx, user.Session{
		UserID:    u.ID,
		TokenHash: "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("seed stale session: %v", err)
	}

	removed, err := svc.PruneSessions(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned session, got %d", removed)
	}

	// The live session survives the prune.
	if _, err := svc.Authenticate(ctx, token); err != nil {
		t.Fatalf("live session should survive prune: %v", err)
	}
}
