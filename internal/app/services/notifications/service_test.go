package notifications

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lifeos-hq/lifeos/internal/app/domain/notification"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func TestNotifyAndInbox(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if _, err := svc.Notify(ctx, "u1", "system", title, "", "", "system"); err != nil {
			t.Fatalf("notify %s: %v", title, err)
		}
	}

	all, err := svc.List(ctx, "u1", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(all))
	}

	capped, err := svc.List(ctx, "u1", false, 2)
	if err != nil {
		t.Fatalf("list capped: %v", err)
	}
	if len(capped) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(capped))
	}

	read, err := svc.MarkRead(ctx, "u1", all[0].ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.Read {
		t.Fatalf("notification not marked read")
	}

	unread, err := svc.List(ctx, "u1", true, 0)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(unread))
	}

	n, err := svc.MarkAllRead(ctx, "u1")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 marked, got %d", n)
	}

	if _, err := svc.MarkRead(ctx, "intruder", all[1].ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected not found for foreign notification, got %v", err)
	}
	if err := svc.Delete(ctx, "u1", all[2].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := svc.Notify(ctx, "u1", "system", "  ", "", "", "system"); err == nil {
		t.Fatalf("expected error for empty title")
	}
}

func TestTriggerValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.CreateTrigger(ctx, "u1", "carrier_pigeon", nil, 9, true); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := svc.CreateTrigger(ctx, "u1", notification.TriggerTaskDue, nil, 24, true); err == nil {
		t.Fatalf("expected error for out of range hour")
	}
	if _, err := svc.CreateTrigger(ctx, "u1", notification.TriggerTaskDue, map[string]interface{}{"days_before": 3.0}, 9, true); err == nil {
		t.Fatalf("expected error for param on wrong kind")
	}
	if _, err := svc.CreateTrigger(ctx, "u1", notification.TriggerGoalReminder, map[string]interface{}{"idle_days": -1.0}, 9, true); err == nil {
		t.Fatalf("expected error for negative idle_days")
	}
	if _, err := svc.CreateTrigger(ctx, "u1", notification.TriggerHabitReminder, map[string]interface{}{"system_id": 7.0}, 9, true); err == nil {
		t.Fatalf("expected error for non-string system_id")
	}

	trg, err := svc.CreateTrigger(ctx, "u1", notification.TriggerSubscriptionRenewal, map[string]interface{}{"days_before": 5.0}, 8, true)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	hour := 22
	enabled := false
	updated, err := svc.UpdateTrigger(ctx, "u1", trg.ID, nil, &hour, &enabled)
	if err != nil {
		t.Fatalf("update trigger: %v", err)
	}
	if updated.Hour != 22 || updated.Enabled {
		t.Fatalf("update not applied: %#v", updated)
	}
	if updated.Params["days_before"] != 5.0 {
		t.Fatalf("params changed unexpectedly: %#v", updated.Params)
	}

	if _, err := svc.UpdateTrigger(ctx, "intruder", trg.ID, nil, nil, nil); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected not found for foreign trigger, got %v", err)
	}
	if err := svc.DeleteTrigger(ctx, "u1", trg.ID); err != nil {
		t.Fatalf("delete trigger: %v", err)
	}
}
