package journal

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/journal"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{Email: "j@example.com", Timezone: "UTC", Plan: user.PlanFree, Role: user.RoleMember})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return New(store, store, nil), u.ID
}

func TestSanitizeContent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "just a note about ratios 3:4", "just a note about ratios 3:4"},
		{"http link kept", "see [docs](https://example.com/a)", "see [docs](https://example.com/a)"},
		{"mailto kept", "[mail me](mailto:a@b.com)", "[mail me](mailto:a@b.com)"},
		{"relative kept", "[home](/dashboard)", "[home](/dashboard)"},
		{"javascript stripped", "[click](javascript:alert(1)) here", "click here"},
		{"wiki parens kept", "[go](https://en.wikipedia.org/wiki/Go_(language))", "[go](https://en.wikipedia.org/wiki/Go_(language))"},
		{"data image stripped", "![x](data:text/html;base64,AAAA)", "x"},
		{"titled link stripped", `[x](vbscript:msgbox "hi")`, "x"},
		{"autolink stripped", "ping <javascript:alert(1)> now", "ping alert(1) now"},
		{"http autolink kept", "<https://example.com>", "<https://example.com>"},
		{"bare ftp stripped", "get ftp://files.example.com/x.iso", "get files.example.com/x.iso"},
		{"bare https kept", "see https://example.com/page", "see https://example.com/page"},
	}

	for _, tc := range cases {
		if got := SanitizeContent(tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestCreateSanitizesAndDefaults(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, userID, "Day one", "clicked [here](javascript:alert(1))", journal.MoodGood, "", []string{" mood ", ""})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Content != "clicked here" {
		t.Fatalf("content not sanitized: %q", e.Content)
	}
	if e.EntryDate != time.Now().UTC().Format(dayFormat) {
		t.Fatalf("entry date not defaulted: %q", e.EntryDate)
	}
	if len(e.Tags) != 1 || e.Tags[0] != "mood" {
		t.Fatalf("tags not cleaned: %#v", e.Tags)
	}

	if _, err := svc.Create(ctx, userID, "", "", "", "", nil); err == nil {
		t.Fatalf("expected error for empty entry")
	}
	if _, err := svc.Create(ctx, userID, "x", "", "ecstatic", "", nil); err == nil {
		t.Fatalf("expected error for unknown mood")
	}
	if _, err := svc.Create(ctx, userID, "x", "", "", "15-03-2024", nil); err == nil {
		t.Fatalf("expected error for malformed entry date")
	}

	// Content-only entries are fine.
	if _, err := svc.Create(ctx, userID, "", "thoughts", "", "", nil); err != nil {
		t.Fatalf("content-only create: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	seed := []struct {
		title, mood, date string
		tags              []string
	}{
		{"a", journal.MoodGood, "2024-03-10", []string{"work"}},
		{"b", journal.MoodBad, "2024-03-12", nil},
		{"c", journal.MoodGood, "2024-03-14", []string{"Work", "gym"}},
	}
	for _, s := range seed {
		if _, err := svc.Create(ctx, userID, s.title, "", s.mood, s.date, s.tags); err != nil {
			t.Fatalf("seed %s: %v", s.title, err)
		}
	}

	got, err := svc.List(ctx, userID, "2024-03-11", "2024-03-14", "", "")
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(got))
	}

	got, err = svc.List(ctx, userID, "", "", journal.MoodGood, "")
	if err != nil {
		t.Fatalf("list mood: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 good entries, got %d", len(got))
	}

	got, err = svc.List(ctx, userID, "", "", "", "work")
	if err != nil {
		t.Fatalf("list tag: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 work entries, got %d", len(got))
	}

	got, err = svc.List(ctx, userID, "", "", journal.MoodBad, "work")
	if err != nil {
		t.Fatalf("list combined: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestUpdateFields(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, userID, "Draft", "original", journal.MoodNeutral, "2024-03-10", []string{"a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	content := "updated [x](javascript:alert(1))"
	noMood := ""
	updated, err := svc.Update(ctx, userID, e.ID, nil, &content, &noMood, nil, []string{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "updated x" {
		t.Fatalf("content not sanitized on update: %q", updated.Content)
	}
	if updated.Mood != "" {
		t.Fatalf("mood not cleared: %q", updated.Mood)
	}
	if len(updated.Tags) != 0 {
		t.Fatalf("tags not cleared: %#v", updated.Tags)
	}
	if updated.Title != "Draft" || updated.EntryDate != "2024-03-10" {
		t.Fatalf("untouched fields changed: %#v", updated)
	}

	empty := ""
	if _, err := svc.Update(ctx, userID, e.ID, &empty, &empty, nil, nil, nil); err == nil {
		t.Fatalf("expected error when clearing both title and content")
	}
}

func TestOwnershipMissReadsAsNotFound(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, userID, "Mine", "", "", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, "intruder", e.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, "intruder", e.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}
