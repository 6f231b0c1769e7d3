package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	"github.com/lifeos-hq/lifeos/internal/app/services/notifications"
	"github.com/lifeos-hq/lifeos/internal/app/services/users"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

const testSecret = "sk_test_secret"

type verifierFunc func(ctx context.Context, reference string) (billing.Info, error)

func (f verifierFunc) Verify(ctx context.Context, reference string) (billing.Info, error) {
	return f(ctx, reference)
}

func newTestService(t *testing.T) (*Service, *memory.Store, user.User, *[]string) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{
		Email:       "femi@example.com",
		DisplayName: "Femi",
		Plan:        user.PlanFree,
		Timezone:    "UTC",
		Role:        user.RoleMember,
	})
	require.NoError(t, err)

	subjects := &[]string{}
	sender := mailer.SenderFunc(func(ctx context.Context, to, subject, html string) (string, error) {
		*subjects = append(*subjects, subject)
		return "provider-1", nil
	})

	svc := New(store, users.New(store, store, store, "jwt-secret", 0, nil), nil)
	svc.AttachNotifier(notifications.New(store, nil))
	svc.AttachMailer(mailer.New(store, sender, nil))
	return svc, store, u, subjects
}

func successInfo(u user.User) verifierFunc {
	return func(ctx context.Context, reference string) (billing.Info, error) {
		return billing.Info{
			Reference: reference,
			Amount:    5500,
			Currency:  "NGN",
			Email:     u.Email,
			UserID:    u.ID,
			Plan:      user.PlanPro,
			Succeeded: true,
		}, nil
	}
}

func paystackBody(event, reference string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q}}`, event, reference))
}

func TestPaystackWebhookUpgradesPlan(t *testing.T) {
	svc, store, u, subjects := newTestService(t)
	svc.ConfigurePaystack(testSecret, successInfo(u))
	ctx := context.Background()

	body := paystackBody("charge.success", "ref-100")
	payment, handled, err := svc.HandlePaystack(ctx, SignPaystack(testSecret, body), body)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, billing.StatusVerified, payment.Status)
	require.Equal(t, 5500.0, payment.Amount)

	upgraded, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, user.PlanPro, upgraded.Plan)

	inbox, err := store.ListNotifications(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Len(t, *subjects, 1)
	require.Contains(t, (*subjects)[0], "Payment received")

	// A replayed delivery is acknowledged without a second application.
	again, handled, err := svc.HandlePaystack(ctx, SignPaystack(testSecret, body), body)
	require.NoError(t, err)
	require.False(t, handled)
	require.Equal(t, payment.ID, again.ID)

	payments, err := svc.ListPayments(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

func TestPaystackRejectsBadSignature(t *testing.T) {
	svc, store, u, _ := newTestService(t)
	svc.ConfigurePaystack(testSecret, successInfo(u))

	body := paystackBody("charge.success", "ref-101")
	_, _, err := svc.HandlePaystack(context.Background(), "deadbeef", body)
	require.ErrorIs(t, err, ErrBadSignature)

	payments, err := store.ListPayments(context.Background(), u.ID)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestPaystackIgnoresForeignEvents(t *testing.T) {
	svc, _, u, _ := newTestService(t)
	svc.ConfigurePaystack(testSecret, successInfo(u))

	body := paystackBody("subscription.disable", "ref-102")
	_, handled, err := svc.HandlePaystack(context.Background(), SignPaystack(testSecret, body), body)
	require.NoError(t, err)
	require.False(t, handled)
}

func TestVerifierFailureSurfaces(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.ConfigurePaystack(testSecret, verifierFunc(func(ctx context.Context, reference string) (billing.Info, error) {
		return billing.Info{}, fmt.Errorf("upstream 503")
	}))

	body := paystackBody("charge.success", "ref-103")
	_, _, err := svc.HandlePaystack(context.Background(), SignPaystack(testSecret, body), body)
	require.ErrorIs(t, err, ErrProviderFailure)
}

func TestRejectedChargeStoresRowWithoutUpgrade(t *testing.T) {
	svc, store, u, _ := newTestService(t)
	svc.ConfigureFlutterwave("fw-hash", verifierFunc(func(ctx context.Context, reference string) (billing.Info, error) {
		return billing.Info{Reference: reference, Amount: 900, Currency: "NGN", Email: u.Email, Succeeded: false}, nil
	}))
	ctx := context.Background()

	body := []byte(`{"event":"charge.completed","data":{"id":77,"tx_ref":"fw-1"}}`)
	payment, handled, err := svc.HandleFlutterwave(ctx, "fw-hash", body)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, billing.StatusRejected, payment.Status)

	kept, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, user.PlanFree, kept.Plan, "rejected charges never change the plan")

	_, err = store.GetPaymentByReference(ctx, billing.ProviderFlutterwave, "fw-1")
	require.NoError(t, err)
}

func TestFlutterwaveHashMismatch(t *testing.T) {
	svc, _, u, _ := newTestService(t)
	svc.ConfigureFlutterwave("fw-hash", successInfo(u))

	_, _, err := svc.HandleFlutterwave(context.Background(), "wrong", []byte(`{"event":"charge.completed","data":{"tx_ref":"x"}}`))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestUnknownUserIsAcknowledged(t *testing.T) {
	svc, store, u, _ := newTestService(t)
	svc.ConfigurePaystack(testSecret, verifierFunc(func(ctx context.Context, reference string) (billing.Info, error) {
		return billing.Info{Reference: reference, Email: "stranger@example.com", Succeeded: true}, nil
	}))

	body := paystackBody("charge.success", "ref-104")
	_, handled, err := svc.HandlePaystack(context.Background(), SignPaystack(testSecret, body), body)
	require.NoError(t, err, "retries cannot fix an unknown user, so the delivery is acked")
	require.False(t, handled)

	payments, err := store.ListPayments(context.Background(), u.ID)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestUnconfiguredProviderRefuses(t *testing.T) {
	store := memory.New()
	svc := New(store, users.New(store, store, store, "jwt-secret", 0, nil), nil)

	_, _, err := svc.HandlePaystack(context.Background(), "sig", []byte("{}"))
	require.ErrorIs(t, err, ErrNotConfigured)
	_, _, err = svc.HandleFlutterwave(context.Background(), "hash", []byte("{}"))
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestResolveUserFallsBackToEmail(t *testing.T) {
	svc, store, u, _ := newTestService(t)
	svc.ConfigurePaystack(testSecret, verifierFunc(func(ctx context.Context, reference string) (billing.Info, error) {
		// No user id in the metadata; only the customer email.
		return billing.Info{Reference: reference, Amount: 100, Currency: "NGN", Email: "FEMI@example.com", Succeeded: true}, nil
	}))
	ctx := context.Background()

	body := paystackBody("charge.success", "ref-105")
	_, handled, err := svc.HandlePaystack(ctx, SignPaystack(testSecret, body), body)
	require.NoError(t, err)
	require.True(t, handled)

	upgraded, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, user.PlanPro, upgraded.Plan)
}
