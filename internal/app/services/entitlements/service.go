// Package entitlements derives per-user feature access from the user's plan
// and the admin-managed global toggles. A feature is enabled only when both
// sides allow it.
package entitlements

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/admin"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Feature keys known to the entitlement matrix.
const (
	FeatureAssistantChat       = "assistant_chat"
	FeatureAssistantCategorize = "assistant_categorize"
	FeatureAssistantSchedule   = "assistant_schedule"
	FeatureRealtimeSync        = "realtime_sync"
	FeatureFinanceReports      = "finance_reports"
	FeatureEmailNotifications  = "email_notifications"
)

// ErrNotEntitled marks operations denied by the entitlement matrix.
var ErrNotEntitled = errors.New("feature not enabled")

// Require returns an ErrNotEntitled error naming the feature when the user
// may not use it.
func (s *Service) Require(ctx context.Context, u user.User, feature string) error {
	if s.Allow(ctx, u, feature) {
		return nil
	}
	return fmt.Errorf("%s: %w", feature, ErrNotEntitled)
}

var allFeatures = []string{
	FeatureAssistantChat,
	FeatureAssistantCategorize,
	FeatureAssistantSchedule,
	FeatureRealtimeSync,
	FeatureFinanceReports,
	FeatureEmailNotifications,
}

var freeFeatures = map[string]struct{}{
	FeatureRealtimeSync:       {},
	FeatureEmailNotifications: {},
}

// KnownFeature reports whether the key is part of the matrix.
func KnownFeature(feature string) bool {
	for _, f := range allFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

// Entitlement is the derived decision for one feature. Source records which
// side denied it ("plan" or "toggle"), or "granted".
type Entitlement struct {
	Enabled bool   `json:"enabled"`
	Source  string `json:"source"`
}

// Service evaluates the entitlement matrix and manages admin settings.
type Service struct {
	settings storage.SettingStore
	log      *logger.Logger
}

// New constructs an entitlements service.
func New(settings storage.SettingStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("entitlements")
	}
	return &Service{settings: settings, log: log}
}

// Evaluate derives the decision for every known feature.
func (s *Service) Evaluate(ctx context.Context, u user.User) map[string]Entitlement {
	toggles := s.toggles(ctx)

	result := make(map[string]Entitlement, len(allFeatures))
	for _, feature := range allFeatures {
		result[feature] = decide(u.Plan, feature, toggles)
	}
	return result
}

// Allow reports whether one feature is enabled for the user.
func (s *Service) Allow(ctx context.Context, u user.User, feature string) bool {
	if !KnownFeature(feature) {
		return false
	}
	return decide(u.Plan, feature, s.toggles(ctx)).Enabled
}

// GetSettings returns every stored admin setting.
func (s *Service) GetSettings(ctx context.Context) ([]admin.Setting, error) {
	return s.settings.ListSettings(ctx)
}

// GetSetting returns one admin setting by key.
func (s *Service) GetSetting(ctx context.Context, key string) (admin.Setting, error) {
	return s.settings.GetSetting(ctx, strings.TrimSpace(key))
}

// PutSetting stores an admin setting. The feature toggle map is validated
// before it is accepted.
func (s *Service) PutSetting(ctx context.Context, key string, value json.RawMessage, updatedBy string) (admin.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return admin.Setting{}, fmt.Errorf("key is required")
	}
	if len(value) == 0 {
		return admin.Setting{}, fmt.Errorf("value is required")
	}

	if key == admin.SettingFeatures {
		var toggles map[string]bool
		if err := json.Unmarshal(value, &toggles); err != nil {
			return admin.Setting{}, fmt.Errorf("features value must map feature keys to booleans")
		}
		for feature := range toggles {
			if !KnownFeature(feature) {
				return admin.Setting{}, fmt.Errorf("unknown feature %q", feature)
			}
		}
	}

	setting, err := s.settings.PutSetting(ctx, admin.Setting{
		Key:       key,
		Value:     value,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return admin.Setting{}, err
	}
	s.log.WithField("key", key).
		WithField("updated_by", updatedBy).
		Info("admin setting stored")
	return setting, nil
}

// toggles loads the global feature toggle map. A missing row or an unreadable
// value means every toggle is on.
func (s *Service) toggles(ctx context.Context) map[string]bool {
	setting, err := s.settings.GetSetting(ctx, admin.SettingFeatures)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.WithError(err).Warn("load feature toggles failed")
		}
		return nil
	}

	var toggles map[string]bool
	if err := json.Unmarshal(setting.Value, &toggles); err != nil {
		s.log.WithError(err).Warn("feature toggle setting malformed")
		return nil
	}
	return toggles
}

func decide(plan, feature string, toggles map[string]bool) Entitlement {
	if !planGrants(plan, feature) {
		return Entitlement{Enabled: false, Source: "plan"}
	}
	if enabled, ok := toggles[feature]; ok && !enabled {
		return Entitlement{Enabled: false, Source: "toggle"}
	}
	return Entitlement{Enabled: true, Source: "granted"}
}

func planGrants(plan, feature string) bool {
	switch plan {
	case user.PlanPro:
		return true
	case user.PlanFree:
		_, ok := freeFeatures[feature]
		return ok
	default:
		return false
	}
}
