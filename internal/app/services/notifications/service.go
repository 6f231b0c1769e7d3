// Package notifications manages the notification inbox, per-user trigger
// rules, and the cron engine that evaluates them.
package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lifeos-hq/lifeos/internal/app/domain/notification"
	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

const dayFormat = "2006-01-02"

// Service manages notifications and trigger rules.
type Service struct {
	store storage.NotificationStore
	log   *logger.Logger
	hub   *realtime.Hub
}

// New constructs a notifications service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// AttachHub enables realtime delivery of new notifications.
func (s *Service) AttachHub(hub *realtime.Hub) {
	s.hub = hub
}

// Notify inserts a notification and pushes it to the user's realtime
// connections. Other services call this to raise in-app events.
func (s *Service) Notify(ctx context.Context, userID, kind, title, body, link, source string) (notification.Notification, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return notification.Notification{}, fmt.Errorf("title is required")
	}

	n, err := s.store.CreateNotification(ctx, notification.Notification{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
		Link:   link,
		Source: source,
	})
	if err != nil {
		return notification.Notification{}, err
	}

	s.hub.Publish(userID, realtime.TopicNotifications, realtime.EventInsert, n)
	metrics.RecordNotification(kind)
	s.log.WithField("user_id", userID).
		WithField("kind", kind).
		Debug("notification raised")
	return n, nil
}

// List returns the user's notifications, newest first. unreadOnly drops
// read items; limit caps the result when positive.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	all, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]notification.Notification, 0, len(all))
	for _, n := range all {
		if unreadOnly && n.Read {
			continue
		}
		result = append(result, n)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (notification.Notification, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return notification.Notification{}, err
	}
	return s.store.MarkNotificationRead(ctx, id)
}

// MarkAllRead flags every unread notification of the user as read and
// returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteNotification(ctx, id)
}

// CreateTrigger stores a new trigger rule.
func (s *Service) CreateTrigger(ctx context.Context, userID, kind string, params map[string]interface{}, hour int, enabled bool) (notification.Trigger, error) {
	if !notification.KnownTriggerKind(kind) {
		return notification.Trigger{}, fmt.Errorf("unknown trigger kind %q", kind)
	}
	if hour < 0 || hour > 23 {
		return notification.Trigger{}, fmt.Errorf("hour must be between 0 and 23")
	}
	if err := validateParams(kind, params); err != nil {
		return notification.Trigger{}, err
	}

	trg, err := s.store.CreateTrigger(ctx, notification.Trigger{
		UserID:  userID,
		Kind:    kind,
		Params:  params,
		Hour:    hour,
		Enabled: enabled,
	})
	if err != nil {
		return notification.Trigger{}, err
	}

	s.log.WithField("trigger_id", trg.ID).
		WithField("kind", kind).
		Info("trigger created")
	return trg, nil
}

// GetTrigger returns one of the user's triggers.
func (s *Service) GetTrigger(ctx context.Context, userID, id string) (notification.Trigger, error) {
	return s.ownedTrigger(ctx, userID, id)
}

// ListTriggers returns the user's triggers.
func (s *Service) ListTriggers(ctx context.Context, userID string) ([]notification.Trigger, error) {
	return s.store.ListTriggers(ctx, userID)
}

// UpdateTrigger applies the provided fields. The kind is fixed at
// creation.
func (s *Service) UpdateTrigger(ctx context.Context, userID, id string, params map[string]interface{}, hour *int, enabled *bool) (notification.Trigger, error) {
	trg, err := s.ownedTrigger(ctx, userID, id)
	if err != nil {
		return notification.Trigger{}, err
	}

	if params != nil {
		if err := validateParams(trg.Kind, params); err != nil {
			return notification.Trigger{}, err
		}
		trg.Params = params
	}
	if hour != nil {
		if *hour < 0 || *hour > 23 {
			return notification.Trigger{}, fmt.Errorf("hour must be between 0 and 23")
		}
		trg.Hour = *hour
	}
	if enabled != nil {
		trg.Enabled = *enabled
	}

	trg, err = s.store.UpdateTrigger(ctx, trg)
	if err != nil {
		return notification.Trigger{}, err
	}

	s.log.WithField("trigger_id", trg.ID).Info("trigger updated")
	return trg, nil
}

// DeleteTrigger removes a trigger rule.
func (s *Service) DeleteTrigger(ctx context.Context, userID, id string) error {
	if _, err := s.ownedTrigger(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteTrigger(ctx, id); err != nil {
		return err
	}

	s.log.WithField("trigger_id", id).Info("trigger deleted")
	return nil
}

func (s *Service) owned(ctx context.Context, userID, id string) (notification.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != userID {
		return notification.Notification{}, fmt.Errorf("notification %s: %w", id, sql.ErrNoRows)
	}
	return n, nil
}

func (s *Service) ownedTrigger(ctx context.Context, userID, id string) (notification.Trigger, error) {
	trg, err := s.store.GetTrigger(ctx, id)
	if err != nil {
		return notification.Trigger{}, err
	}
	if trg.UserID != userID {
		return notification.Trigger{}, fmt.Errorf("trigger %s: %w", id, sql.ErrNoRows)
	}
	return trg, nil
}

// validateParams checks the typed parameters each trigger kind accepts.
func validateParams(kind string, params map[string]interface{}) error {
	for key, value := range params {
		switch {
		case kind == notification.TriggerHabitReminder && key == "system_id":
			if _, ok := value.(string); !ok {
				return fmt.Errorf("param %s must be a string", key)
			}
		case kind == notification.TriggerSubscriptionRenewal && key == "days_before",
			kind == notification.TriggerGoalReminder && key == "idle_days",
			kind == notification.TriggerJournalReminder && key == "idle_days":
			if !positiveNumber(value) {
				return fmt.Errorf("param %s must be a positive number", key)
			}
		default:
			return fmt.Errorf("param %s not supported for %s triggers", key, kind)
		}
	}
	return nil
}

// positiveNumber accepts the numeric shapes JSON decoding produces.
func positiveNumber(v interface{}) bool {
	switch n := v.(type) {
	case float64:
		return n > 0
	case int:
		return n > 0
	}
	return false
}

// intParam reads a positive integer parameter, falling back to def.
func intParam(params map[string]interface{}, key string, def int) int {
	switch n := params[key].(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	}
	return def
}

// stringParam reads a string parameter, empty when absent.
func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return s
}
