package admin

import (
	"encoding/json"
	"time"
)

// SettingFeatures is the key of the global feature toggle map.
const SettingFeatures = "features"

// Setting is one admin-managed configuration row. Value is raw JSON.
type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedBy string          `json:"updated_by,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
