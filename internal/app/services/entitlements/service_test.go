package entitlements

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func TestEvaluatePlanMatrix(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	free := svc.Evaluate(ctx, user.User{Plan: user.PlanFree})
	if !free[FeatureRealtimeSync].Enabled || !free[FeatureEmailNotifications].Enabled {
		t.Fatalf("free plan should grant realtime and email: %#v", free)
	}
	if free[FeatureAssistantChat].Enabled || free[FeatureAssistantChat].Source != "plan" {
		t.Fatalf("free plan should deny assistant chat with source plan: %#v", free[FeatureAssistantChat])
	}
	if free[FeatureFinanceReports].Enabled {
		t.Fatalf("free plan should deny finance reports")
	}

	pro := svc.Evaluate(ctx, user.User{Plan: user.PlanPro})
	for feature, decision := range pro {
		if !decision.Enabled || decision.Source != "granted" {
			t.Fatalf("pro plan should grant %s: %#v", feature, decision)
		}
	}
}

func TestGlobalToggleDeniesProOnly(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	value, _ := json.Marshal(map[string]bool{FeatureAssistantChat: false})
	if _, err := svc.PutSetting(ctx, "features", value, "admin-1"); err != nil {
		t.Fatalf("put setting: %v", err)
	}

	pro := svc.Evaluate(ctx, user.User{Plan: user.PlanPro})
	if pro[FeatureAssistantChat].Enabled || pro[FeatureAssistantChat].Source != "toggle" {
		t.Fatalf("toggle should deny pro with source toggle: %#v", pro[FeatureAssistantChat])
	}
	if !pro[FeatureAssistantCategorize].Enabled {
		t.Fatalf("untouched features stay granted")
	}

	// Plan denial wins over toggle denial for features the plan never grants.
	free := svc.Evaluate(ctx, user.User{Plan: user.PlanFree})
	if free[FeatureAssistantChat].Source != "plan" {
		t.Fatalf("free denial should report plan, got %s", free[FeatureAssistantChat].Source)
	}
}

func TestAllow(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if !svc.Allow(ctx, user.User{Plan: user.PlanFree}, FeatureRealtimeSync) {
		t.Fatalf("free plan should allow realtime sync")
	}
	if svc.Allow(ctx, user.User{Plan: user.PlanFree}, FeatureAssistantSchedule) {
		t.Fatalf("free plan should deny assistant schedule")
	}
	if svc.Allow(ctx, user.User{Plan: user.PlanPro}, "does_not_exist") {
		t.Fatalf("unknown features are never allowed")
	}
}

func TestPutSettingValidatesFeatureMap(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.PutSetting(ctx, "features", json.RawMessage(`"on"`), "admin-1"); err == nil {
		t.Fatalf("expected error for non-object features value")
	}
	if _, err := svc.PutSetting(ctx, "features", json.RawMessage(`{"bogus":true}`), "admin-1"); err == nil {
		t.Fatalf("expected error for unknown feature key")
	}
	if _, err := svc.PutSetting(ctx, "", json.RawMessage(`{}`), "admin-1"); err == nil {
		t.Fatalf("expected error for empty key")
	}

	// Non-feature keys are stored without schema checks.
	if _, err := svc.PutSetting(ctx, "support_email", json.RawMessage(`"help@lifeos.app"`), "admin-1"); err != nil {
		t.Fatalf("put free-form setting: %v", err)
	}

	settings, err := svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("list settings: %v", err)
	}
	if len(settings) != 1 {
		t.Fatalf("expected 1 setting, got %d", len(settings))
	}
}
