package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	app "github.com/lifeos-hq/lifeos/internal/app"
	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/internal/app/domain/mail"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	billingsvc "github.com/lifeos-hq/lifeos/internal/app/services/billing"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
	"github.com/lifeos-hq/lifeos/internal/config"
)

const (
	testPaystackSecret  = "whsec-test"
	testFlutterwaveHash = "flw-verif-hash"
	testEmailToken      = "hook-token"
)

type scriptedCompleter struct{}

func (scriptedCompleter) Complete(_ context.Context, system string, _ []assistant.ChatMessage) (string, error) {
	switch {
	case strings.Contains(system, "categorize"):
		return "Groceries.", nil
	case strings.Contains(system, "plan one day"):
		return `[{"start":"09:00","end":"10:00","title":"Deep work"}]`, nil
	default:
		return "Start with the hardest task while your energy is high.", nil
	}
}

type staticVerifier struct {
	info billing.Info
}

func (v staticVerifier) Verify(_ context.Context, reference string) (billing.Info, error) {
	info := v.info
	info.Reference = reference
	return info, nil
}

type captureSender struct {
	mu   sync.Mutex
	seq  int
	byTo map[string][]string
}

func (c *captureSender) Send(_ context.Context, to, _, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("prov-%d", c.seq)
	if c.byTo == nil {
		c.byTo = map[string][]string{}
	}
	c.byTo[to] = append(c.byTo[to], id)
	return id, nil
}

func (c *captureSender) firstTo(to string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ids := c.byTo[to]; len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func TestHandlerLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "handler-test-secret"
	cfg.Billing.PaystackSecret = testPaystackSecret
	cfg.Billing.FlutterwaveSecret = "flw-secret"
	cfg.Billing.FlutterwaveHash = testFlutterwaveHash

	sender := &captureSender{}
	mailStore := memory.New()
	application, err := app.New(app.Stores{Mail: mailStore}, app.Options{
		Config:              cfg,
		Completer:           scriptedCompleter{},
		MailSender:          sender,
		PaystackVerifier:    staticVerifier{info: billing.Info{Email: "bob@lifeos.test", Plan: user.PlanPro, Amount: 5000, Currency: "NGN", Succeeded: true}},
		FlutterwaveVerifier: staticVerifier{info: billing.Info{Email: "bob@lifeos.test", Plan: user.PlanPro, Amount: 5000, Currency: "NGN", Succeeded: false}},
	})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	defer application.Stop(context.Background())

	handler, err := NewHandler(application, Options{EmailWebhookToken: testEmailToken})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	aliceToken, alice := register(t, handler, "alice@lifeos.test", "correct-horse", "Alice")
	if alice.Role != user.RoleAdmin {
		t.Fatalf("expected first account to be admin, got %q", alice.Role)
	}
	bobToken, bob := register(t, handler, "bob@lifeos.test", "battery-staple", "Bob")
	if bob.Role != user.RoleMember || bob.Plan != user.PlanFree {
		t.Fatalf("expected member on free plan, got %q/%q", bob.Role, bob.Plan)
	}

	resp := do(handler, authedRequest(http.MethodPost, "/auth/login", "", marshal(map[string]any{
		"email": "alice@lifeos.test", "password": "correct-horse",
	})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 login, got %d", resp.Code)
	}
	var login struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
	decode(t, resp.Body.Bytes(), &login)
	aliceToken = login.Token

	resp = do(handler, authedRequest(http.MethodGet, "/me", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 me, got %d", resp.Code)
	}

	resp = do(handler, authedRequest(http.MethodPatch, "/me", aliceToken, marshal(map[string]any{"display_name": "Alice A"})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 patch me, got %d", resp.Code)
	}
	var me user.User
	decode(t, resp.Body.Bytes(), &me)
	if me.DisplayName != "Alice A" {
		t.Fatalf("expected display name update, got %q", me.DisplayName)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/me/password", aliceToken, marshal(map[string]any{
		"current_password": "correct-horse", "new_password": "correct-horse-2",
	})))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 change password, got %d", resp.Code)
	}
	resp = do(handler, authedRequest(http.MethodPost, "/auth/login", "", marshal(map[string]any{
		"email": "alice@lifeos.test", "password": "correct-horse-2",
	})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 login with new password, got %d", resp.Code)
	}

	resp = do(handler, authedRequest(http.MethodGet, "/me/entitlements", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 entitlements, got %d", resp.Code)
	}
	var ents map[string]struct {
		Enabled bool   `json:"enabled"`
		Source  string `json:"source"`
	}
	decode(t, resp.Body.Bytes(), &ents)
	if ents["assistant_chat"].Enabled {
		t.Fatalf("expected assistant_chat disabled on free plan")
	}
	if !ents["realtime_sync"].Enabled {
		t.Fatalf("expected realtime_sync enabled on free plan")
	}

	// Tasks.
	resp = do(handler, authedRequest(http.MethodPost, "/tasks", aliceToken, marshal(map[string]any{
		"title": "Ship report", "priority": "high",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create task, got %d: %s", resp.Code, resp.Body.String())
	}
	taskID := fieldString(t, resp.Body.Bytes(), "id")

	resp = do(handler, authedRequest(http.MethodPost, "/tasks/"+taskID+"/complete", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 complete task, got %d", resp.Code)
	}
	if status := fieldString(t, resp.Body.Bytes(), "status"); status != "done" {
		t.Fatalf("expected done task, got %q", status)
	}

	resp = do(handler, authedRequest(http.MethodGet, "/tasks?status=done", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list tasks, got %d", resp.Code)
	}
	if n := arrayLen(t, resp.Body.Bytes()); n != 1 {
		t.Fatalf("expected 1 done task, got %d", n)
	}

	// Systems and habits.
	resp = do(handler, authedRequest(http.MethodPost, "/systems", aliceToken, marshal(map[string]any{"name": "Health"})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create system, got %d", resp.Code)
	}
	systemID := fieldString(t, resp.Body.Bytes(), "id")

	resp = do(handler, authedRequest(http.MethodPost, "/systems/"+systemID+"/habits", aliceToken, marshal(map[string]any{
		"name": "Run", "cadence": "daily",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create habit, got %d: %s", resp.Code, resp.Body.String())
	}
	habitID := fieldString(t, resp.Body.Bytes(), "id")

	today := time.Now().UTC().Format("2006-01-02")
	resp = do(handler, authedRequest(http.MethodPost, "/habits/"+habitID+"/checkins", aliceToken, marshal(map[string]any{"day": today})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 check in, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, authedRequest(http.MethodGet, "/habits/"+habitID+"/streak", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 streak, got %d", resp.Code)
	}
	var streak struct {
		Current int `json:"current"`
		Longest int `json:"longest"`
	}
	decode(t, resp.Body.Bytes(), &streak)
	if streak.Current != 1 || streak.Longest != 1 {
		t.Fatalf("expected streak 1/1, got %d/%d", streak.Current, streak.Longest)
	}

	// Journal.
	resp = do(handler, authedRequest(http.MethodPost, "/journal", aliceToken, marshal(map[string]any{
		"title": "Day one", "content": "Started tracking everything.", "mood": "good",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 journal entry, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, authedRequest(http.MethodGet, "/journal?mood=good", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list journal, got %d", resp.Code)
	}
	if n := arrayLen(t, resp.Body.Bytes()); n != 1 {
		t.Fatalf("expected 1 journal entry, got %d", n)
	}

	// Finance.
	resp = do(handler, authedRequest(http.MethodPost, "/finance/accounts", aliceToken, marshal(map[string]any{
		"name": "GTBank", "kind": "bank", "currency": "NGN", "opening_balance": 150000,
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create account, got %d: %s", resp.Code, resp.Body.String())
	}
	accountID := fieldString(t, resp.Body.Bytes(), "id")

	resp = do(handler, authedRequest(http.MethodPost, "/finance/transactions", aliceToken, marshal(map[string]any{
		"account_id": accountID, "kind": "expense", "category": "groceries",
		"description": "Market run", "amount": 7500,
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create transaction, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, authedRequest(http.MethodGet, "/finance/accounts/"+accountID, aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 get account, got %d", resp.Code)
	}
	var acct struct {
		Balance float64 `json:"balance"`
	}
	decode(t, resp.Body.Bytes(), &acct)
	if acct.Balance != 142500 {
		t.Fatalf("expected balance 142500, got %v", acct.Balance)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/finance/goals", aliceToken, marshal(map[string]any{
		"name": "Emergency fund", "target_amount": 100000,
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create goal, got %d: %s", resp.Code, resp.Body.String())
	}
	goalID := fieldString(t, resp.Body.Bytes(), "id")

	resp = do(handler, authedRequest(http.MethodPost, "/finance/goals/"+goalID+"/entries", aliceToken, marshal(map[string]any{"amount": 25000})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 add entry, got %d: %s", resp.Code, resp.Body.String())
	}
	var added struct {
		Entry struct {
			ID string `json:"id"`
		} `json:"entry"`
		Goal struct {
			Balance float64 `json:"balance"`
		} `json:"goal"`
	}
	decode(t, resp.Body.Bytes(), &added)
	if added.Goal.Balance != 25000 {
		t.Fatalf("expected goal balance 25000, got %v", added.Goal.Balance)
	}

	resp = do(handler, authedRequest(http.MethodDelete, "/finance/goals/"+goalID+"/entries/"+added.Entry.ID, aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 delete entry, got %d", resp.Code)
	}
	var afterDelete struct {
		Balance float64 `json:"balance"`
	}
	decode(t, resp.Body.Bytes(), &afterDelete)
	if afterDelete.Balance != 0 {
		t.Fatalf("expected goal balance back to 0, got %v", afterDelete.Balance)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/finance/subscriptions", aliceToken, marshal(map[string]any{
		"name": "Netflix", "amount": 4400, "cadence": "monthly",
		"next_billing_date": time.Now().UTC().Add(72 * time.Hour).Format(time.RFC3339),
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create subscription, got %d: %s", resp.Code, resp.Body.String())
	}
	subID := fieldString(t, resp.Body.Bytes(), "id")

	resp = do(handler, authedRequest(http.MethodGet, "/finance/subscriptions?upcoming_days=30", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 upcoming subscriptions, got %d", resp.Code)
	}
	if n := arrayLen(t, resp.Body.Bytes()); n != 1 {
		t.Fatalf("expected 1 upcoming subscription, got %d", n)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/finance/subscriptions/"+subID+"/paid", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 mark paid, got %d: %s", resp.Code, resp.Body.String())
	}

	// Reports are pro-gated; upgrade through the admin surface and retry.
	resp = do(handler, authedRequest(http.MethodGet, "/finance/summary", aliceToken, nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 summary on free plan, got %d", resp.Code)
	}

	resp = do(handler, authedRequest(http.MethodPatch, "/admin/users/"+alice.ID, aliceToken, marshal(map[string]any{"plan": "pro"})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 set plan, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, authedRequest(http.MethodGet, "/finance/summary", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 summary on pro plan, got %d: %s", resp.Code, resp.Body.String())
	}

	// Currency rates.
	resp = do(handler, authedRequest(http.MethodPut, "/admin/currency/rates", aliceToken, marshal(map[string]any{"code": "USD", "rate": 1500})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 upsert rate, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, authedRequest(http.MethodGet, "/currency/convert?amount=10&from=USD&to=NGN", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 convert, got %d: %s", resp.Code, resp.Body.String())
	}
	var conv struct {
		Converted float64 `json:"converted"`
	}
	decode(t, resp.Body.Bytes(), &conv)
	if conv.Converted != 15000 {
		t.Fatalf("expected 15000 NGN, got %v", conv.Converted)
	}

	// Assistant, now that alice is pro.
	resp = do(handler, authedRequest(http.MethodGet, "/assistant/personas", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 personas, got %d", resp.Code)
	}
	var personas []assistant.Persona
	decode(t, resp.Body.Bytes(), &personas)
	if len(personas) == 0 {
		t.Fatalf("expected seeded personas")
	}

	resp = do(handler, authedRequest(http.MethodPost, "/assistant/chat", aliceToken, marshal(map[string]any{
		"persona_id": personas[0].ID, "text": "How should I plan today?",
	})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 chat, got %d: %s", resp.Code, resp.Body.String())
	}
	var reply assistant.Message
	decode(t, resp.Body.Bytes(), &reply)
	if reply.Role != assistant.RoleAssistant || reply.ConversationID == "" {
		t.Fatalf("expected assistant reply with conversation, got %+v", reply)
	}

	resp = do(handler, authedRequest(http.MethodGet, "/assistant/conversations/"+reply.ConversationID, aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 messages, got %d", resp.Code)
	}
	if n := arrayLen(t, resp.Body.Bytes()); n != 2 {
		t.Fatalf("expected 2 messages in conversation, got %d", n)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/assistant/categorize", aliceToken, marshal(map[string]any{
		"description": "Market run", "amount": 7500,
	})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 categorize, got %d: %s", resp.Code, resp.Body.String())
	}
	if cat := fieldString(t, resp.Body.Bytes(), "category"); cat != "groceries" {
		t.Fatalf("expected groceries, got %q", cat)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/assistant/schedule", aliceToken, marshal(map[string]any{"date": today})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 schedule, got %d: %s", resp.Code, resp.Body.String())
	}
	var blocks []assistant.ScheduleBlock
	decode(t, resp.Body.Bytes(), &blocks)
	if len(blocks) != 1 || blocks[0].Title != "Deep work" {
		t.Fatalf("expected scripted plan, got %+v", blocks)
	}

	// Notification triggers.
	resp = do(handler, authedRequest(http.MethodPost, "/notifications/triggers", aliceToken, marshal(map[string]any{
		"kind": "journal_reminder", "hour": 20,
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create trigger, got %d: %s", resp.Code, resp.Body.String())
	}
	triggerID := fieldString(t, resp.Body.Bytes(), "id")

	resp = do(handler, authedRequest(http.MethodPatch, "/notifications/triggers/"+triggerID, aliceToken, marshal(map[string]any{"enabled": false})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 patch trigger, got %d", resp.Code)
	}
	var trig struct {
		Enabled bool `json:"enabled"`
	}
	decode(t, resp.Body.Bytes(), &trig)
	if trig.Enabled {
		t.Fatalf("expected trigger disabled")
	}

	// Payment webhooks settle against the fake verifiers.
	paystackBody := []byte(`{"event":"charge.success","data":{"reference":"ps_123"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/paystack", bytes.NewReader(paystackBody))
	req.Header.Set("X-Paystack-Signature", billingsvc.SignPaystack(testPaystackSecret, paystackBody))
	resp = do(handler, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 paystack webhook, got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments/paystack", bytes.NewReader(paystackBody))
	req.Header.Set("X-Paystack-Signature", "bad-signature")
	resp = do(handler, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 bad signature, got %d", resp.Code)
	}

	flwBody := []byte(`{"event":"charge.completed","data":{"id":991,"tx_ref":"flw_77"}}`)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments/flutterwave", bytes.NewReader(flwBody))
	req.Header.Set("verif-hash", testFlutterwaveHash)
	resp = do(handler, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 flutterwave webhook, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, authedRequest(http.MethodGet, "/me", bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 bob me, got %d", resp.Code)
	}
	var bobNow user.User
	decode(t, resp.Body.Bytes(), &bobNow)
	if bobNow.Plan != user.PlanPro {
		t.Fatalf("expected bob upgraded to pro, got %q", bobNow.Plan)
	}

	resp = do(handler, authedRequest(http.MethodGet, "/me/payments", bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 payments, got %d", resp.Code)
	}
	var payments []billing.Payment
	decode(t, resp.Body.Bytes(), &payments)
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
	statuses := map[string]int{}
	for _, p := range payments {
		statuses[p.Status]++
	}
	if statuses[billing.StatusVerified] != 1 || statuses[billing.StatusRejected] != 1 {
		t.Fatalf("expected one verified and one rejected payment, got %v", statuses)
	}

	// Email webhooks.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/email", bytes.NewReader(marshal(map[string]any{
		"type": "email.delivered", "data": map[string]any{"email_id": sender.firstTo("alice@lifeos.test")},
	})))
	resp = do(handler, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without webhook token, got %d", resp.Code)
	}

	resp = do(handler, emailWebhookRequest(map[string]any{
		"type": "email.delivered", "data": map[string]any{"email_id": sender.firstTo("alice@lifeos.test")},
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 delivered webhook, got %d: %s", resp.Code, resp.Body.String())
	}
	msg, err := mailStore.GetMailMessageByProviderID(context.Background(), sender.firstTo("alice@lifeos.test"))
	if err != nil {
		t.Fatalf("get welcome mail: %v", err)
	}
	if msg.Status != mail.StatusDelivered {
		t.Fatalf("expected delivered mail, got %q", msg.Status)
	}

	resp = do(handler, emailWebhookRequest(map[string]any{
		"type": "email.bounced", "data": map[string]any{"email_id": sender.firstTo("bob@lifeos.test")},
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 bounced webhook, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, emailWebhookRequest(map[string]any{
		"type": "email.delivered", "data": map[string]any{"email_id": "prov-unknown"},
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown email id, got %d", resp.Code)
	}

	// The bounce surfaced as an in-app notification for bob.
	resp = do(handler, authedRequest(http.MethodGet, "/notifications?unread=true", bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 notifications, got %d", resp.Code)
	}
	var notes []struct {
		Title string `json:"title"`
	}
	decode(t, resp.Body.Bytes(), &notes)
	found := false
	for _, n := range notes {
		if n.Title == "Email delivery failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bounce notification, got %+v", notes)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/notifications/read-all", bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 read-all, got %d", resp.Code)
	}
	var readAll struct {
		Updated int `json:"updated"`
	}
	decode(t, resp.Body.Bytes(), &readAll)
	if readAll.Updated == 0 {
		t.Fatalf("expected at least one notification marked read")
	}

	// Support tickets.
	resp = do(handler, authedRequest(http.MethodPost, "/tickets", bobToken, marshal(map[string]any{
		"subject": "Billing question", "body": "Was I charged twice?",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create ticket, got %d: %s", resp.Code, resp.Body.String())
	}
	ticketID := fieldString(t, resp.Body.Bytes(), "id")

	resp = do(handler, authedRequest(http.MethodGet, "/admin/tickets?status=open", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 admin tickets, got %d", resp.Code)
	}
	if n := arrayLen(t, resp.Body.Bytes()); n != 1 {
		t.Fatalf("expected 1 open ticket, got %d", n)
	}

	resp = do(handler, authedRequest(http.MethodPatch, "/admin/tickets/"+ticketID, aliceToken, marshal(map[string]any{
		"status": "resolved", "reply": "Only one charge settled; the other was rejected.",
	})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 resolve ticket, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, authedRequest(http.MethodGet, "/tickets/"+ticketID, bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 get ticket, got %d", resp.Code)
	}
	if status := fieldString(t, resp.Body.Bytes(), "status"); status != "resolved" {
		t.Fatalf("expected resolved ticket, got %q", status)
	}

	// Admin audit trail saw the walk.
	resp = do(handler, authedRequest(http.MethodGet, "/admin/audit?limit=10", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 audit, got %d", resp.Code)
	}
	if n := arrayLen(t, resp.Body.Bytes()); n == 0 {
		t.Fatalf("expected audit entries")
	}

	resp = do(handler, authedRequest(http.MethodGet, "/admin/users", bobToken, nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 admin as member, got %d", resp.Code)
	}

	resp = do(handler, authedRequest(http.MethodPost, "/auth/logout", aliceToken, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 logout, got %d", resp.Code)
	}
	resp = do(handler, authedRequest(http.MethodGet, "/me", aliceToken, nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.Code)
	}
}

func TestHandlerAuthRequired(t *testing.T) {
	handler := newTestHandler(t)

	resp := do(handler, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	resp = do(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 healthz without auth, got %d", resp.Code)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler, err := NewHandler(application, Options{RequestsPerMinute: 60})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	limited := false
	for i := 0; i < 10; i++ {
		resp := do(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if resp.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected a 429 after exhausting the burst")
	}
}

func TestHandlerCORSPreflight(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler, err := NewHandler(application, Options{AllowedOrigins: []string{"https://app.lifeos.test"}})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "https://app.lifeos.test")
	resp := do(handler, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://app.lifeos.test" {
		t.Fatalf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp = do(handler, req)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler, err := NewHandler(application, Options{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func register(t *testing.T, handler http.Handler, email, password, name string) (string, user.User) {
	t.Helper()
	resp := do(handler, authedRequest(http.MethodPost, "/auth/register", "", marshal(map[string]any{
		"email": email, "password": password, "display_name": name,
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, resp.Code, resp.Body.String())
	}
	var out struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
	decode(t, resp.Body.Bytes(), &out)
	return out.Token, out.User
}

func do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func authedRequest(method, target, token string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func emailWebhookRequest(payload map[string]any) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", bytes.NewReader(marshal(payload)))
	req.Header.Set("X-Webhook-Token", testEmailToken)
	return req
}

func marshal(v any) []byte {
	buf, _ := json.Marshal(v)
	return buf
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
}

func fieldString(t *testing.T, body []byte, key string) string {
	t.Helper()
	var m map[string]any
	decode(t, body, &m)
	s, _ := m[key].(string)
	return s
}

func arrayLen(t *testing.T, body []byte) int {
	t.Helper()
	var items []json.RawMessage
	decode(t, body, &items)
	return len(items)
}
