package tickets

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lifeos-hq/lifeos/internal/app/domain/ticket"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	"github.com/lifeos-hq/lifeos/internal/app/services/notifications"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

type capturedMail struct {
	to      string
	subject string
	html    string
}

func newTestService(t *testing.T) (*Service, *memory.Store, user.User, *[]capturedMail) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{
		Email:       "bisi@example.com",
		DisplayName: "Bisi",
		Plan:        user.PlanFree,
		Timezone:    "Africa/Lagos",
		Role:        user.RoleMember,
	})
	require.NoError(t, err)

	sent := &[]capturedMail{}
	sender := mailer.SenderFunc(func(ctx context.Context, to, subject, html string) (string, error) {
		*sent = append(*sent, capturedMail{to: to, subject: subject, html: html})
		return "provider-1", nil
	})

	svc := New(store, store, nil)
	svc.AttachMailer(mailer.New(store, sender, nil))
	svc.AttachNotifier(notifications.New(store, nil))
	return svc, store, u, sent
}

func TestCreateAcknowledges(t *testing.T) {
	svc, _, u, sent := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, u.ID, "", "body")
	require.Error(t, err)
	_, err = svc.Create(ctx, u.ID, "subject", "  ")
	require.Error(t, err)

	tk, err := svc.Create(ctx, u.ID, " Billing question ", "I was charged twice.")
	require.NoError(t, err)
	require.Equal(t, ticket.StatusOpen, tk.Status)
	require.Equal(t, "Billing question", tk.Subject)

	require.Len(t, *sent, 1)
	require.Equal(t, "bisi@example.com", (*sent)[0].to)
	require.Contains(t, (*sent)[0].html, "received your request")
}

func TestCreateWithoutMailerStillWorks(t *testing.T) {
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{Email: "x@example.com", Plan: user.PlanFree, Timezone: "UTC", Role: user.RoleMember})
	require.NoError(t, err)

	svc := New(store, store, nil)
	tk, err := svc.Create(context.Background(), u.ID, "Help", "Something broke")
	require.NoError(t, err)
	require.NotEmpty(t, tk.ID)
}

func TestListScopes(t *testing.T) {
	svc, store, u, _ := newTestService(t)
	ctx := context.Background()

	other, err := store.CreateUser(ctx, user.User{Email: "other@example.com", Plan: user.PlanFree, Timezone: "UTC", Role: user.RoleMember})
	require.NoError(t, err)

	mine, err := svc.Create(ctx, u.ID, "Mine", "body")
	require.NoError(t, err)
	_, err = svc.Create(ctx, other.ID, "Theirs", "body")
	require.NoError(t, err)

	own, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, mine.ID, own[0].ID)

	all, err := svc.ListAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.ListAll(ctx, "weird")
	require.Error(t, err)

	// Cross-user reads come back as not found.
	_, err = svc.Get(ctx, other.ID, mine.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAdminReplyNotifiesAndEmails(t *testing.T) {
	svc, store, u, sent := newTestService(t)
	ctx := context.Background()

	admin, err := store.CreateUser(ctx, user.User{Email: "admin@example.com", Plan: user.PlanPro, Timezone: "UTC", Role: user.RoleAdmin})
	require.NoError(t, err)

	tk, err := svc.Create(ctx, u.ID, "Sync issue", "Tasks are not syncing")
	require.NoError(t, err)
	*sent = (*sent)[:0] // drop the acknowledgment

	status := ticket.StatusInProgress
	reply := "We found the cause and are deploying a fix."
	updated, err := svc.Update(ctx, admin.ID, tk.ID, &status, &reply)
	require.NoError(t, err)
	require.Equal(t, ticket.StatusInProgress, updated.Status)
	require.Equal(t, reply, updated.Reply)
	require.Equal(t, admin.ID, updated.RepliedBy)
	require.NotNil(t, updated.RepliedAt)

	require.Len(t, *sent, 1)
	require.Contains(t, (*sent)[0].subject, "Sync issue")
	require.Contains(t, (*sent)[0].html, "deploying a fix")

	inbox, err := store.ListNotifications(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Contains(t, inbox[0].Title, "Support replied")

	// Status-only updates stay quiet.
	resolved := ticket.StatusResolved
	_, err = svc.Update(ctx, admin.ID, tk.ID, &resolved, nil)
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	empty := "   "
	_, err = svc.Update(ctx, admin.ID, tk.ID, nil, &empty)
	require.Error(t, err)

	_, err = svc.Update(ctx, admin.ID, "missing", &resolved, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
