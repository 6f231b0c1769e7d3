package tasks

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{Email: "a@example.com", Timezone: "UTC", Plan: user.PlanFree, Role: user.RoleMember})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return New(store, store, nil), u.ID
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, "Write report", "", "", nil, nil, 30, []string{" work ", ""})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Priority != task.PriorityMedium || created.Status != task.StatusOpen {
		t.Fatalf("unexpected defaults: %#v", created)
	}
	if len(created.Tags) != 1 || created.Tags[0] != "work" {
		t.Fatalf("tags not cleaned: %#v", created.Tags)
	}

	if _, err := svc.Create(ctx, userID, "  ", "", "", nil, nil, 0, nil); err == nil {
		t.Fatalf("expected error for empty title")
	}
	if _, err := svc.Create(ctx, userID, "x", "", "urgent", nil, nil, 0, nil); err == nil {
		t.Fatalf("expected error for unknown priority")
	}
	if _, err := svc.Create(ctx, userID, "x", "", "", nil, nil, -5, nil); err == nil {
		t.Fatalf("expected error for negative duration")
	}
}

func TestOwnershipMissReadsAsNotFound(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, "Mine", "", "", nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, "intruder", created.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("foreign get should read as missing, got %v", err)
	}
	if err := svc.Delete(ctx, "intruder", created.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("foreign delete should read as missing, got %v", err)
	}
	if _, err := svc.Get(ctx, userID, created.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, "Finish me", "", "", nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, err := svc.Complete(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != task.StatusDone || done.CompletedAt == nil {
		t.Fatalf("task not completed: %#v", done)
	}

	again, err := svc.Complete(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !again.CompletedAt.Equal(*done.CompletedAt) {
		t.Fatalf("second completion must not restamp CompletedAt")
	}

	reopened, err := svc.Reopen(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != task.StatusOpen || reopened.CompletedAt != nil {
		t.Fatalf("task not reopened: %#v", reopened)
	}
}

func TestListDueFilters(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1)
	inThreeDays := now.AddDate(0, 0, 3)
	inTenDays := now.AddDate(0, 0, 10)

	mk := func(title string, due *time.Time) task.Task {
		created, err := svc.Create(ctx, userID, title, "", "", due, nil, 0, nil)
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return created
	}
	late := mk("late", &yesterday)
	todayTask := mk("today", &now)
	soon := mk("soon", &inThreeDays)
	far := mk("far", &inTenDays)
	mk("undated", nil)

	assertOnly := func(filter string, want ...string) {
		t.Helper()
		got, err := svc.List(ctx, userID, "", filter, "")
		if err != nil {
			t.Fatalf("list due=%s: %v", filter, err)
		}
		if len(got) != len(want) {
			t.Fatalf("due=%s: expected %d tasks, got %d", filter, len(want), len(got))
		}
		found := map[string]bool{}
		for _, item := range got {
			found[item.Title] = true
		}
		for _, title := range want {
			if !found[title] {
				t.Fatalf("due=%s: missing %s in %v", filter, title, found)
			}
		}
	}

	assertOnly("today", "today")
	assertOnly("overdue", "late")
	assertOnly("week", "today", "soon")

	// Completing the overdue task removes it from the overdue view.
	if _, err := svc.Complete(ctx, userID, late.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	assertOnly("overdue")

	if _, err := svc.List(ctx, userID, "", "someday", ""); err == nil {
		t.Fatalf("expected error for unknown due filter")
	}

	_ = todayTask
	_ = soon
	_ = far
}

func TestListStatusAndTagFilters(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, userID, "A", "", "", nil, nil, 0, []string{"home"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, userID, "B", "", "", nil, nil, 0, []string{"work"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Complete(ctx, userID, a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	open, err := svc.List(ctx, userID, task.StatusOpen, "", "")
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].Title != "B" {
		t.Fatalf("unexpected open list: %#v", open)
	}

	tagged, err := svc.List(ctx, userID, "", "", "HOME")
	if err != nil {
		t.Fatalf("list tagged: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Title != "A" {
		t.Fatalf("tag filter should match case-insensitively: %#v", tagged)
	}
}

func TestUpdateFields(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	due := time.Now().UTC().AddDate(0, 0, 1)
	created, err := svc.Create(ctx, userID, "Original", "", "", &due, nil, 15, []string{"x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Renamed"
	prio := task.PriorityHigh
	clear := time.Time{}
	updated, err := svc.Update(ctx, userID, created.ID, &title, nil, &prio, &clear, nil, nil, []string{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Priority != task.PriorityHigh {
		t.Fatalf("fields not applied: %#v", updated)
	}
	if updated.DueDate != nil {
		t.Fatalf("zero time should clear the due date")
	}
	if len(updated.Tags) != 0 {
		t.Fatalf("empty tag slice should clear tags: %#v", updated.Tags)
	}

	empty := " "
	if _, err := svc.Update(ctx, userID, created.ID, &empty, nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for blank title")
	}
}
