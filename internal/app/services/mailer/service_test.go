package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lifeos-hq/lifeos/internal/app/domain/mail"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func TestSendRecordsOutcome(t *testing.T) {
	store := memory.New()
	svc := New(store, SenderFunc(func(ctx context.Context, to, subject, html string) (string, error) {
		return "prov-1", nil
	}), nil)

	msg, err := svc.Send(context.Background(), "user-1", "a@example.com", TemplateWelcome, map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Status != mail.StatusSent || msg.ProviderID != "prov-1" {
		t.Fatalf("unexpected message state: %#v", msg)
	}
	if !strings.Contains(msg.Subject, "Ada") {
		t.Fatalf("placeholder not substituted: %q", msg.Subject)
	}

	logged, err := store.ListMailMessages(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(logged) != 1 {
		t.Fatalf("expected 1 logged message, got %d", len(logged))
	}
}

func TestSendFailureKeepsRow(t *testing.T) {
	store := memory.New()
	svc := New(store, SenderFunc(func(ctx context.Context, to, subject, html string) (string, error) {
		return "", fmt.Errorf("provider down")
	}), nil)

	msg, err := svc.Send(context.Background(), "user-1", "a@example.com", TemplateWelcome, nil)
	if err == nil {
		t.Fatalf("expected send error")
	}
	if msg.Status != mail.StatusFailed || msg.Error == "" {
		t.Fatalf("failure not recorded: %#v", msg)
	}
}

func TestSendDisabledIsNoOp(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)

	if svc.Enabled() {
		t.Fatalf("mailer with nil sender should be disabled")
	}
	msg, err := svc.Send(context.Background(), "user-1", "a@example.com", TemplateWelcome, nil)
	if err != nil || msg.ID != "" {
		t.Fatalf("disabled send should be a no-op, got %#v err=%v", msg, err)
	}

	logged, _ := store.ListMailMessages(context.Background(), "user-1")
	if len(logged) != 0 {
		t.Fatalf("disabled mailer must not log messages")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, _, err := Render("nope", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}

	subject, html, err := Render(TemplateGoalReached, map[string]string{"name": "Ada", "goal": "Rainy day", "target": "₦50,000"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Rainy day") || !strings.Contains(html, "₦50,000") {
		t.Fatalf("placeholders not substituted: %q", html)
	}
	if strings.Contains(subject+html, "{{") {
		t.Fatalf("unreplaced placeholder remains: %q %q", subject, html)
	}
}

func TestMarkDeliveredAndBounced(t *testing.T) {
	store := memory.New()
	svc := New(store, SenderFunc(func(ctx context.Context, to, subject, html string) (string, error) {
		return "prov-9", nil
	}), nil)

	if _, err := svc.Send(context.Background(), "user-1", "a@example.com", TemplateWelcome, nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg, err := svc.MarkDelivered(context.Background(), "prov-9")
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if msg.Status != mail.StatusDelivered {
		t.Fatalf("expected delivered, got %s", msg.Status)
	}

	msg, err = svc.MarkBounced(context.Background(), "prov-9")
	if err != nil {
		t.Fatalf("mark bounced: %v", err)
	}
	if msg.Status != mail.StatusBounced {
		t.Fatalf("expected bounced, got %s", msg.Status)
	}

	if _, err := svc.MarkDelivered(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown provider id")
	}
}

func TestHTTPSender(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Fatalf("expected auth header, got %q", got)
		}
		w.Write([]byte(`{"id":"email-123"}`))
	}))
	defer server.Close()

	sender, err := NewHTTPSender(server.Client(), server.URL, "key", "LifeOS <hello@lifeos.app>", nil)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	id, err := sender.Send(context.Background(), "a@example.com", "Hi", "<p>Hi</p>")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "email-123" {
		t.Fatalf("unexpected provider id %q", id)
	}

	if _, err := NewHTTPSender(nil, "", "key", "from", nil); err == nil {
		t.Fatalf("expected error for missing url")
	}
}
