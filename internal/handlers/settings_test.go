package handlers

import (
	"context"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"media-gallery/internal/database"
	"media-gallery/internal/jobs"
)

func TestGetSettingsOmitsSecretHash(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	ctx := context.Background()
	if err := env.db.SetSettings(ctx, map[string]string{
		"theme":                         "dark",
		database.SettingPublicAccess:    "true",
		database.SettingAdminSecretHash: "$2a$10$secret",
	}); err != nil {
		t.Fatalf("SetSettings() failed: %v", err)
	}

	w := env.get(t, "/api/settings")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var values map[string]string
	decodeJSON(t, w, &values)
	if values["theme"] != "dark" || values[database.SettingPublicAccess] != "true" {
		t.Errorf("settings = %v, want theme and public_access", values)
	}
	if _, ok := values[database.SettingAdminSecretHash]; ok {
		t.Error("admin secret hash leaked in settings response")
	}
}

func TestUpdateSettingsEnqueuesJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/settings", map[string]string{"theme": "dark"}, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %q)", w.Code, w.Body.String())
	}
	var resp struct {
		JobID string `json:"jobId"`
	}
	decodeJSON(t, w, &resp)
	if resp.JobID == "" {
		t.Fatal("no job id returned")
	}

	status, err := env.queue.Status(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if status.State != jobs.StateQueued {
		t.Errorf("job state = %q, want queued", status.State)
	}
}

func TestUpdateSettingsRejectsForbiddenKeys(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/settings", map[string]string{"openai_api_key": "sk-x"}, nil)
	wantErrorCode(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestUpdateSettingsRejectsEmptyBody(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/settings", map[string]string{}, nil)
	wantErrorCode(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestSensitiveSettingsRequireAdminSecret(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := env.db.SetSetting(context.Background(), database.SettingAdminSecretHash, string(hash)); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}

	body := map[string]string{database.SettingPublicAccess: "true"}

	w := env.do(t, http.MethodPut, "/api/settings", body, nil)
	wantErrorCode(t, w, http.StatusUnauthorized, "UNAUTHORIZED")

	w = env.do(t, http.MethodPut, "/api/settings", body, map[string]string{
		HeaderAdminSecret: "wrong",
	})
	wantErrorCode(t, w, http.StatusUnauthorized, "UNAUTHORIZED")

	w = env.do(t, http.MethodPut, "/api/settings", body, map[string]string{
		HeaderAdminSecret: "hunter2",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status with correct secret = %d, want 202 (body %q)", w.Code, w.Body.String())
	}
}

func TestNonSensitiveSettingsNeedNoSecret(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if err := env.db.SetSetting(context.Background(), database.SettingAdminSecretHash, "$2a$10$x"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}

	w := env.do(t, http.MethodPut, "/api/settings", map[string]string{"theme": "light"}, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %q)", w.Code, w.Body.String())
	}
}
