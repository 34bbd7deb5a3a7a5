package database

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"media-gallery/internal/errs"
)

// Well-known settings keys.
const (
	SettingAdminSecretHash = "admin_secret_hash"
	SettingPublicAccess    = "public_access"
	SettingPasswordEnabled = "password_enabled"
)

// ForbiddenSettingKeys are AI provider credentials that must never land
// in settings.db; providers read them from their own environment.
var ForbiddenSettingKeys = map[string]bool{
	"ai_api_key":        true,
	"openai_api_key":    true,
	"anthropic_api_key": true,
	"gemini_api_key":    true,
	"ai_provider_token": true,
}

// SensitiveSettingKeys require the admin secret on writes.
var SensitiveSettingKeys = map[string]bool{
	SettingAdminSecretHash: true,
	SettingPublicAccess:    true,
	SettingPasswordEnabled: true,
}

// ValidateSettingKeys rejects any forbidden key up front so a bad key
// fails the whole write before anything persists.
func ValidateSettingKeys(values map[string]string) error {
	var bad []string
	for k := range values {
		if ForbiddenSettingKeys[strings.ToLower(k)] {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return errs.Ef(errs.ValidationError, "setting keys are not allowed: %s", strings.Join(bad, ", "))
	}
	return nil
}

// GetSetting returns the stored value; missing keys surface as
// sql.ErrNoRows.
func (m *Manager) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := m.Settings.Get(ctx, "get_setting",
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	return v, err
}

// GetSettingDefault returns the stored value or def when unset.
func (m *Manager) GetSettingDefault(ctx context.Context, key, def string) (string, error) {
	v, err := m.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// AllSettings returns every stored key/value pair.
func (m *Manager) AllSettings(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	err := m.Settings.All(ctx, "all_settings",
		`SELECT key, value FROM settings`,
		func(rows *sql.Rows) error {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out[k] = v
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetSetting upserts one key after the forbidden-key check.
func (m *Manager) SetSetting(ctx context.Context, key, value string) error {
	return m.SetSettings(ctx, map[string]string{key: value})
}

// SetSettings applies a set of writes atomically. Any forbidden key
// rejects the whole set and nothing persists.
func (m *Manager) SetSettings(ctx context.Context, values map[string]string) error {
	if err := ValidateSettingKeys(values); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(values))
	for k, v := range values {
		rows = append(rows, []interface{}{k, v})
	}
	return m.Settings.RunPreparedBatch(ctx, "set_settings", `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		rows, DefaultBatchOptions())
}
