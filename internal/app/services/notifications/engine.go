package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/domain/notification"
	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/internal/app/system"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

const sweepTimeout = 45 * time.Second

// Engine evaluates enabled triggers once per minute. A trigger fires during
// its configured user-local hour, at most once per local day, and raises a
// notification when its condition holds.
type Engine struct {
	service *Service
	users   storage.UserStore
	tasks   storage.TaskStore
	habits  storage.HabitStore
	finance storage.FinanceStore
	journal storage.JournalStore
	ent     *entitlements.Service
	mail    *mailer.Service
	log     *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Engine)(nil)

// NewEngine constructs the trigger engine. The entitlements and mailer
// services may be nil, which disables renewal emails.
func NewEngine(service *Service, users storage.UserStore, tasks storage.TaskStore, habits storage.HabitStore, financeStore storage.FinanceStore, journal storage.JournalStore, ent *entitlements.Service, mail *mailer.Service, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("notification-engine")
	}
	return &Engine{
		service: service,
		users:   users,
		tasks:   tasks,
		habits:  habits,
		finance: financeStore,
		journal: journal,
		ent:     ent,
		mail:    mail,
		log:     log,
	}
}

// Name implements system.Service.
func (e *Engine) Name() string {
	return "notification-engine"
}

// Start schedules the minutely sweep.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("notification engine already running")
	}

	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		e.sweep(context.Background(), time.Now())
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()

	e.cron = c
	e.running = true
	e.log.Info("notification engine started")
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}

	stopped := e.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	e.cron = nil
	e.running = false
	e.log.Info("notification engine stopped")
	return nil
}

// firing is one trigger evaluation that found its condition true.
type firing struct {
	title string
	body  string
	link  string
	email map[string]string
}

// sweep walks every enabled trigger. Failures on one trigger are logged
// and do not stop the rest.
func (e *Engine) sweep(ctx context.Context, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	triggers, err := e.service.store.ListEnabledTriggers(ctx)
	if err != nil {
		e.log.WithError(err).Warn("failed to list triggers")
		return
	}

	fired := 0
	for _, trg := range triggers {
		u, err := e.users.GetUser(ctx, trg.UserID)
		if err != nil {
			e.log.WithError(err).WithField("trigger_id", trg.ID).Warn("trigger user lookup failed")
			continue
		}

		local := now.In(userLocation(u))
		if local.Hour() != trg.Hour {
			continue
		}
		today := local.Format(dayFormat)
		if trg.LastFiredDay == today {
			continue
		}

		hit, err := e.evaluate(ctx, trg, local)
		if err != nil {
			e.log.WithError(err).WithField("trigger_id", trg.ID).Warn("trigger evaluation failed")
		}

		// One evaluation per trigger per local day, condition or not.
		trg.LastFiredDay = today
		if _, uerr := e.service.store.UpdateTrigger(ctx, trg); uerr != nil {
			e.log.WithError(uerr).WithField("trigger_id", trg.ID).Warn("failed to stamp trigger")
		}

		if err != nil || hit == nil {
			continue
		}
		if _, nerr := e.service.Notify(ctx, trg.UserID, trg.Kind, hit.title, hit.body, hit.link, "trigger:"+trg.ID); nerr != nil {
			e.log.WithError(nerr).WithField("trigger_id", trg.ID).Warn("failed to raise notification")
			continue
		}
		fired++

		if hit.email != nil {
			e.sendEmail(ctx, u, hit)
		}
	}

	if len(triggers) > 0 {
		e.log.WithField("triggers", len(triggers)).
			WithField("fired", fired).
			Debug("notification sweep completed")
	}
}

// evaluate checks one trigger's condition at the user-local time. A nil
// firing means the condition did not hold.
func (e *Engine) evaluate(ctx context.Context, trg notification.Trigger, local time.Time) (*firing, error) {
	switch trg.Kind {
	case notification.TriggerTaskDue:
		return e.evalTaskDue(ctx, trg, local)
	case notification.TriggerHabitReminder:
		return e.evalHabitReminder(ctx, trg, local)
	case notification.TriggerSubscriptionRenewal:
		return e.evalSubscriptionRenewal(ctx, trg, local)
	case notification.TriggerGoalReminder:
		return e.evalGoalReminder(ctx, trg, local)
	case notification.TriggerJournalReminder:
		return e.evalJournalReminder(ctx, trg, local)
	}
	return nil, fmt.Errorf("unknown trigger kind %q", trg.Kind)
}

func (e *Engine) evalTaskDue(ctx context.Context, trg notification.Trigger, local time.Time) (*firing, error) {
	tasks, err := e.tasks.ListTasks(ctx, trg.UserID)
	if err != nil {
		return nil, err
	}

	today := local.Format(dayFormat)
	count := 0
	for _, t := range tasks {
		if t.Status != task.StatusOpen || t.DueDate == nil {
			continue
		}
		if t.DueDate.In(local.Location()).Format(dayFormat) <= today {
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}
	return &firing{
		title: "Tasks need attention",
		body:  fmt.Sprintf("You have %d open task(s) due today or overdue.", count),
		link:  "/tasks?due=today",
	}, nil
}

func (e *Engine) evalHabitReminder(ctx context.Context, trg notification.Trigger, local time.Time) (*firing, error) {
	habits, err := e.habits.ListUserHabits(ctx, trg.UserID)
	if err != nil {
		return nil, err
	}

	systemID := stringParam(trg.Params, "system_id")
	today := local.Format(dayFormat)
	missing := 0
	for _, h := range habits {
		if h.Archived {
			continue
		}
		if systemID != "" && h.SystemID != systemID {
			continue
		}
		if _, err := e.habits.GetCheckIn(ctx, h.ID, today); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		missing++
	}
	if missing == 0 {
		return nil, nil
	}
	return &firing{
		title: "Habits waiting for a check-in",
		body:  fmt.Sprintf("%d habit(s) have no check-in today.", missing),
		link:  "/habits",
	}, nil
}

func (e *Engine) evalSubscriptionRenewal(ctx context.Context, trg notification.Trigger, local time.Time) (*firing, error) {
	subs, err := e.finance.ListSubscriptions(ctx, trg.UserID)
	if err != nil {
		return nil, err
	}

	days := intParam(trg.Params, "days_before", 3)
	cutoff := local.AddDate(0, 0, days).Format(dayFormat)

	var soonest *finance.Subscription
	due := 0
	for i, sub := range subs {
		if !sub.Active {
			continue
		}
		// Past-due dates keep reminding until the charge is marked paid.
		if sub.NextBillingDate.In(local.Location()).Format(dayFormat) > cutoff {
			continue
		}
		due++
		if soonest == nil || sub.NextBillingDate.Before(soonest.NextBillingDate) {
			soonest = &subs[i]
		}
	}
	if soonest == nil {
		return nil, nil
	}

	date := soonest.NextBillingDate.In(local.Location()).Format(dayFormat)
	body := fmt.Sprintf("%s renews on %s (%.2f %s).", soonest.Name, date, soonest.Amount, soonest.Currency)
	if due > 1 {
		body = fmt.Sprintf("%d subscriptions renew within %d days. Next: %s on %s.", due, days, soonest.Name, date)
	}
	return &firing{
		title: "Subscription renewal coming up",
		body:  body,
		link:  "/finance/subscriptions",
		email: map[string]string{
			"service": soonest.Name,
			"date":    date,
			"amount":  fmt.Sprintf("%.2f %s", soonest.Amount, soonest.Currency),
		},
	}, nil
}

func (e *Engine) evalGoalReminder(ctx context.Context, trg notification.Trigger, local time.Time) (*firing, error) {
	goals, err := e.finance.ListSavingsGoals(ctx, trg.UserID)
	if err != nil {
		return nil, err
	}

	idleDays := intParam(trg.Params, "idle_days", 14)
	cutoff := local.AddDate(0, 0, -idleDays)

	idle := 0
	for _, goal := range goals {
		if goal.TargetAmount > 0 && goal.Balance >= goal.TargetAmount {
			continue
		}
		entries, err := e.finance.ListSavingsEntries(ctx, goal.ID)
		if err != nil {
			return nil, err
		}
		lastActivity := goal.CreatedAt
		for _, entry := range entries {
			if entry.CreatedAt.After(lastActivity) {
				lastActivity = entry.CreatedAt
			}
		}
		if lastActivity.Before(cutoff) {
			idle++
		}
	}
	if idle == 0 {
		return nil, nil
	}
	return &firing{
		title: "Savings goals going quiet",
		body:  fmt.Sprintf("%d savings goal(s) had no contribution in the last %d days.", idle, idleDays),
		link:  "/finance/savings",
	}, nil
}

func (e *Engine) evalJournalReminder(ctx context.Context, trg notification.Trigger, local time.Time) (*firing, error) {
	entries, err := e.journal.ListEntries(ctx, trg.UserID)
	if err != nil {
		return nil, err
	}

	idleDays := intParam(trg.Params, "idle_days", 3)
	cutoff := local.AddDate(0, 0, -idleDays).Format(dayFormat)
	for _, entry := range entries {
		if entry.EntryDate > cutoff {
			return nil, nil
		}
	}
	return &firing{
		title: "Your journal misses you",
		body:  fmt.Sprintf("No journal entry in the last %d days.", idleDays),
		link:  "/journal",
	}, nil
}

// sendEmail delivers the renewal email when the user's plan grants it.
func (e *Engine) sendEmail(ctx context.Context, u user.User, hit *firing) {
	if e.ent == nil || !e.mail.Enabled() {
		return
	}
	if !e.ent.Allow(ctx, u, entitlements.FeatureEmailNotifications) {
		return
	}
	if _, err := e.mail.Send(ctx, u.ID, u.Email, mailer.TemplateSubscriptionRenewal, hit.email); err != nil {
		e.log.WithError(err).WithField("user_id", u.ID).Warn("renewal email failed")
	}
}

func userLocation(u user.User) *time.Location {
	if loc, err := time.LoadLocation(u.Timezone); err == nil {
		return loc
	}
	return time.UTC
}
