// Package journal manages journal entries and the link sanitizer applied to
// their markdown content.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/journal"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

const dayFormat = "2006-01-02"

// Service manages journal entries.
type Service struct {
	store storage.JournalStore
	users storage.UserStore
	log   *logger.Logger
	hub   *realtime.Hub
}

// New constructs a journal service.
func New(store storage.JournalStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("journal")
	}
	return &Service{store: store, users: users, log: log}
}

// AttachHub enables realtime change events.
func (s *Service) AttachHub(hub *realtime.Hub) {
	s.hub = hub
}

// Create stores a new entry. EntryDate defaults to today in the user's
// timezone and content passes through link sanitization.
func (s *Service) Create(ctx context.Context, userID, title, content, mood, entryDate string, tags []string) (journal.Entry, error) {
	title = strings.TrimSpace(title)
	content = SanitizeContent(strings.TrimSpace(content))
	if title == "" && content == "" {
		return journal.Entry{}, fmt.Errorf("title or content is required")
	}
	if mood != "" && !journal.KnownMood(mood) {
		return journal.Entry{}, fmt.Errorf("unknown mood %q", mood)
	}

	entryDate = strings.TrimSpace(entryDate)
	if entryDate == "" {
		entryDate = s.today(ctx, userID)
	} else if _, err := time.Parse(dayFormat, entryDate); err != nil {
		return journal.Entry{}, fmt.Errorf("entry date must be YYYY-MM-DD")
	}

	e, err := s.store.CreateEntry(ctx, journal.Entry{
		UserID:    userID,
		Title:     title,
		Content:   content,
		Mood:      mood,
		Tags:      cleanTags(tags),
		EntryDate: entryDate,
	})
	if err != nil {
		return journal.Entry{}, err
	}

	s.publish(userID, realtime.EventInsert, e)
	s.log.WithField("entry_id", e.ID).
		WithField("user_id", userID).
		Info("journal entry created")
	return e, nil
}

// Get returns one of the user's entries.
func (s *Service) Get(ctx context.Context, userID, entryID string) (journal.Entry, error) {
	return s.owned(ctx, userID, entryID)
}

// List returns the user's entries, filtered by inclusive from/to entry
// dates, mood and tag when set.
func (s *Service) List(ctx context.Context, userID, from, to, mood, tag string) ([]journal.Entry, error) {
	entries, err := s.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]journal.Entry, 0, len(entries))
	for _, e := range entries {
		if from != "" && e.EntryDate < from {
			continue
		}
		if to != "" && e.EntryDate > to {
			continue
		}
		if mood != "" && e.Mood != mood {
			continue
		}
		if tag != "" && !hasTag(e.Tags, tag) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// Update applies the provided fields. A pointer to the empty string clears
// the mood; updated content is sanitized again.
func (s *Service) Update(ctx context.Context, userID, entryID string, title, content, mood, entryDate *string, tags []string) (journal.Entry, error) {
	e, err := s.owned(ctx, userID, entryID)
	if err != nil {
		return journal.Entry{}, err
	}

	if title != nil {
		e.Title = strings.TrimSpace(*title)
	}
	if content != nil {
		e.Content = SanitizeContent(strings.TrimSpace(*content))
	}
	if e.Title == "" && e.Content == "" {
		return journal.Entry{}, fmt.Errorf("title or content is required")
	}
	if mood != nil {
		if *mood != "" && !journal.KnownMood(*mood) {
			return journal.Entry{}, fmt.Errorf("unknown mood %q", *mood)
		}
		e.Mood = *mood
	}
	if entryDate != nil {
		if _, err := time.Parse(dayFormat, *entryDate); err != nil {
			return journal.Entry{}, fmt.Errorf("entry date must be YYYY-MM-DD")
		}
		e.EntryDate = *entryDate
	}
	if tags != nil {
		e.Tags = cleanTags(tags)
	}

	e, err = s.store.UpdateEntry(ctx, e)
	if err != nil {
		return journal.Entry{}, err
	}

	s.publish(userID, realtime.EventUpdate, e)
	s.log.WithField("entry_id", e.ID).Info("journal entry updated")
	return e, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	e, err := s.owned(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEntry(ctx, e.ID); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, e)
	s.log.WithField("entry_id", e.ID).Info("journal entry deleted")
	return nil
}

func (s *Service) owned(ctx context.Context, userID, entryID string) (journal.Entry, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return journal.Entry{}, err
	}
	if e.UserID != userID {
		return journal.Entry{}, fmt.Errorf("journal entry %s: %w", entryID, sql.ErrNoRows)
	}
	return e, nil
}

func (s *Service) publish(userID, event string, payload interface{}) {
	s.hub.Publish(userID, realtime.TopicJournal, event, payload)
}

func (s *Service) today(ctx context.Context, userID string) string {
	loc := time.UTC
	if u, err := s.users.GetUser(ctx, userID); err == nil {
		if l, err := time.LoadLocation(u.Timezone); err == nil {
			loc = l
		}
	}
	return time.Now().In(loc).Format(dayFormat)
}

func cleanTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return cleaned
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
