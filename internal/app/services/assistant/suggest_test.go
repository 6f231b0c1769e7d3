package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
)

func TestCategorizeThroughGateway(t *testing.T) {
	completer := CompleterFunc(func(_ context.Context, system string, _ []domain.ChatMessage) (string, error) {
		return "Groceries.", nil
	})
	svc, _, u := newTestService(t, completer)
	ctx := context.Background()

	got, err := svc.Categorize(ctx, u, "Shoprite run", 15000)
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	if got.Category != "groceries" || got.Confidence != 0.9 {
		t.Fatalf("unexpected suggestion: %#v", got)
	}

	svc.completer = CompleterFunc(func(_ context.Context, _ string, _ []domain.ChatMessage) (string, error) {
		return "teleportation", nil
	})
	got, err = svc.Categorize(ctx, u, "weird charge", 10)
	if err != nil {
		t.Fatalf("categorize out of set: %v", err)
	}
	if got.Category != "other" || got.Confidence != 0.4 {
		t.Fatalf("out-of-set answer not mapped to other: %#v", got)
	}

	if _, err := svc.Categorize(ctx, u, "  ", 1); err == nil {
		t.Fatalf("expected error for empty description")
	}
}

func TestCategorizeFallbackKeywords(t *testing.T) {
	svc, _, u := newTestService(t, nil)
	ctx := context.Background()

	got, err := svc.Categorize(ctx, u, "Uber to Lekki", 3500)
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	if got.Category != "transport" || got.Confidence != 0.8 {
		t.Fatalf("keyword match failed: %#v", got)
	}

	got, err = svc.Categorize(ctx, u, "mystery box", 100)
	if err != nil {
		t.Fatalf("categorize unknown: %v", err)
	}
	if got.Category != "other" || got.Confidence != 0.3 {
		t.Fatalf("unknown description not low-confidence other: %#v", got)
	}
}

func TestCategorizeGatewayError(t *testing.T) {
	completer := CompleterFunc(func(_ context.Context, _ string, _ []domain.ChatMessage) (string, error) {
		return "", errors.New("boom")
	})
	svc, _, u := newTestService(t, completer)

	if _, err := svc.Categorize(context.Background(), u, "anything", 1); !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("expected gateway failure, got %v", err)
	}
}

func TestScheduleParsesGatewayPlan(t *testing.T) {
	completer := CompleterFunc(func(_ context.Context, _ string, _ []domain.ChatMessage) (string, error) {
		return "```json\n[{\"start\":\"10:00\",\"end\":\"11:00\",\"title\":\"Focus block\"}]\n```", nil
	})
	svc, _, u := newTestService(t, completer)

	blocks, err := svc.Schedule(context.Background(), u, "2024-05-10")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Title != "Focus block" || blocks[0].Start != "10:00" {
		t.Fatalf("unexpected plan: %#v", blocks)
	}
}

func TestScheduleFallsBackToDeterministicPlan(t *testing.T) {
	completer := CompleterFunc(func(_ context.Context, _ string, _ []domain.ChatMessage) (string, error) {
		return "Sorry, I would rather write poetry today.", nil
	})
	svc, store, u := newTestService(t, completer)
	ctx := context.Background()

	due := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	created, err := store.CreateTask(ctx, task.Task{UserID: u.ID, Title: "Deep work", Status: task.StatusOpen, Priority: task.PriorityHigh, DueDate: &due, DurationMinutes: 90})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	sys, err := store.CreateSystem(ctx, habit.System{UserID: u.ID, Name: "Mornings"})
	if err != nil {
		t.Fatalf("seed system: %v", err)
	}
	if _, err := store.CreateHabit(ctx, habit.Habit{SystemID: sys.ID, UserID: u.ID, Name: "Meditate", Cadence: habit.CadenceDaily, Reminder: "07:00"}); err != nil {
		t.Fatalf("seed habit: %v", err)
	}
	checked, err := store.CreateHabit(ctx, habit.Habit{SystemID: sys.ID, UserID: u.ID, Name: "Stretch", Cadence: habit.CadenceDaily})
	if err != nil {
		t.Fatalf("seed checked habit: %v", err)
	}
	if _, err := store.CreateCheckIn(ctx, habit.CheckIn{HabitID: checked.ID, UserID: u.ID, Day: "2024-05-10"}); err != nil {
		t.Fatalf("seed check-in: %v", err)
	}

	blocks, err := svc.Schedule(ctx, u, "2024-05-10")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %#v", blocks)
	}
	if blocks[0].Title != "Meditate" || blocks[0].Start != "07:00" || blocks[0].End != "07:30" {
		t.Fatalf("habit block wrong: %#v", blocks[0])
	}
	if blocks[1].TaskID != created.ID || blocks[1].Start != "09:00" || blocks[1].End != "10:30" {
		t.Fatalf("task block wrong: %#v", blocks[1])
	}
}

func TestScheduleDeniedWithoutEntitlement(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	ctx := context.Background()
	free, err := store.CreateUser(ctx, user.User{Email: "free@example.com", Plan: user.PlanFree, Timezone: "UTC", Role: user.RoleMember})
	if err != nil {
		t.Fatalf("seed free user: %v", err)
	}

	if _, err := svc.Schedule(ctx, free, ""); !errors.Is(err, entitlements.ErrNotEntitled) {
		t.Fatalf("expected entitlement denial, got %v", err)
	}
}
