package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	domain "github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func newTestService(t *testing.T, completer Completer) (*Service, *memory.Store, user.User) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	u, err := store.CreateUser(ctx, user.User{Email: "pro@example.com", Plan: user.PlanPro, Timezone: "UTC", Role: user.RoleMember})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	svc := New(store, store, store, entitlements.New(store, nil), completer, nil)
	if err := svc.SeedPersonas(ctx); err != nil {
		t.Fatalf("seed personas: %v", err)
	}
	return svc, store, u
}

func personaNamed(t *testing.T, svc *Service, name string) domain.Persona {
	t.Helper()
	personas, err := svc.ListPersonas(context.Background())
	if err != nil {
		t.Fatalf("list personas: %v", err)
	}
	for _, p := range personas {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("persona %s not seeded", name)
	return domain.Persona{}
}

func TestChatRoundTrip(t *testing.T) {
	var turns int
	completer := CompleterFunc(func(_ context.Context, system string, messages []domain.ChatMessage) (string, error) {
		turns = len(messages)
		if system == "" {
			return "", fmt.Errorf("missing system prompt")
		}
		return "Noted. See [details](javascript:alert(1)).", nil
	})
	svc, _, u := newTestService(t, completer)
	ctx := context.Background()
	coach := personaNamed(t, svc, "coach")

	opening := strings.Repeat("plan my week ", 10) // > 60 chars
	msg, err := svc.Chat(ctx, u, coach.ID, "", opening)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if msg.Role != domain.RoleAssistant {
		t.Fatalf("expected assistant role, got %q", msg.Role)
	}
	if msg.Content != "Noted. See details." {
		t.Fatalf("reply not sanitized: %q", msg.Content)
	}
	if turns != 1 {
		t.Fatalf("first turn should see 1 message, saw %d", turns)
	}

	convs, err := svc.Conversations(ctx, u)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	if got := len([]rune(convs[0].Title)); got != 60 {
		t.Fatalf("title not clipped to 60 runes, got %d", got)
	}

	if _, err := svc.Chat(ctx, u, "", convs[0].ID, "and tomorrow?"); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if turns != 3 {
		t.Fatalf("second turn should see 3 messages, saw %d", turns)
	}

	messages, err := svc.Messages(ctx, u, convs[0].ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(messages))
	}

	if err := svc.DeleteConversation(ctx, u, convs[0].ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, err := svc.Messages(ctx, u, convs[0].ID); err == nil {
		t.Fatalf("expected error for deleted conversation")
	}
}

func TestChatDeniedForFreePlan(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	ctx := context.Background()
	free, err := store.CreateUser(ctx, user.User{Email: "free@example.com", Plan: user.PlanFree, Timezone: "UTC", Role: user.RoleMember})
	if err != nil {
		t.Fatalf("seed free user: %v", err)
	}
	coach := personaNamed(t, svc, "coach")

	if _, err := svc.Chat(ctx, free, coach.ID, "", "hello"); !errors.Is(err, entitlements.ErrNotEntitled) {
		t.Fatalf("expected entitlement denial, got %v", err)
	}
	if _, err := svc.Conversations(ctx, free); !errors.Is(err, entitlements.ErrNotEntitled) {
		t.Fatalf("expected entitlement denial on list, got %v", err)
	}
}

func TestChatGatewayFailureKeepsUserMessage(t *testing.T) {
	completer := CompleterFunc(func(_ context.Context, _ string, _ []domain.ChatMessage) (string, error) {
		return "", fmt.Errorf("upstream 500")
	})
	svc, store, u := newTestService(t, completer)
	ctx := context.Background()
	coach := personaNamed(t, svc, "coach")

	_, err := svc.Chat(ctx, u, coach.ID, "", "are you there?")
	if !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("expected gateway failure, got %v", err)
	}

	convs, err := store.ListConversations(ctx, u.ID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected conversation to survive, got %d", len(convs))
	}
	messages, err := store.ListMessages(ctx, convs[0].ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != domain.RoleUser {
		t.Fatalf("expected only the user message, got %#v", messages)
	}
}

func TestChatWithoutGatewayUsesNotice(t *testing.T) {
	svc, _, u := newTestService(t, nil)
	ctx := context.Background()
	coach := personaNamed(t, svc, "coach")

	msg, err := svc.Chat(ctx, u, coach.ID, "", "hello")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(msg.Content, "not configured") {
		t.Fatalf("expected the fixed notice, got %q", msg.Content)
	}
}

func TestPersonaAdmin(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	coach := personaNamed(t, svc, "coach")

	if err := svc.DeletePersona(ctx, coach.ID); err == nil {
		t.Fatalf("expected built-in delete to fail")
	}
	if _, err := svc.CreatePersona(ctx, "coach", "", "prompt"); err == nil {
		t.Fatalf("expected duplicate name to fail")
	}

	custom, err := svc.CreatePersona(ctx, "stoic", "Calm counsel", "You are a stoic mentor.")
	if err != nil {
		t.Fatalf("create persona: %v", err)
	}
	if custom.BuiltIn {
		t.Fatalf("custom persona flagged built-in")
	}

	rename := "coach"
	if _, err := svc.UpdatePersona(ctx, custom.ID, &rename, nil, nil); err == nil {
		t.Fatalf("expected rename onto existing name to fail")
	}

	tagline := "Updated"
	updated, err := svc.UpdatePersona(ctx, custom.ID, nil, &tagline, nil)
	if err != nil {
		t.Fatalf("update persona: %v", err)
	}
	if updated.Tagline != "Updated" {
		t.Fatalf("tagline not updated: %q", updated.Tagline)
	}

	if err := svc.DeletePersona(ctx, custom.ID); err != nil {
		t.Fatalf("delete persona: %v", err)
	}

	// Seeding again only restores what is missing.
	if err := svc.SeedPersonas(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	personas, err := svc.ListPersonas(ctx)
	if err != nil {
		t.Fatalf("list personas: %v", err)
	}
	if len(personas) != 3 {
		t.Fatalf("expected the 3 built-ins, got %d", len(personas))
	}
}
