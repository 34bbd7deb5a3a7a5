package handlers

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"media-gallery/internal/database"
	"media-gallery/internal/errs"
	"media-gallery/internal/jobs"
)

// HeaderAdminSecret authorizes sensitive settings writes.
const HeaderAdminSecret = "X-Admin-Secret"

// GetSettings returns the settings table minus the admin secret hash,
// which never leaves the server.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.db.AllSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	delete(values, database.SettingAdminSecretHash)
	writeJSON(w, http.StatusOK, values)
}

// UpdateSettings validates the submitted keys and enqueues a durable
// settings-update job; the queue worker applies the write. Sensitive
// keys require the admin secret.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := readJSON(r, &values); err != nil {
		writeError(w, r, err)
		return
	}
	if len(values) == 0 {
		writeError(w, r, errs.Ef(errs.ValidationError, "no settings provided"))
		return
	}
	if err := database.ValidateSettingKeys(values); err != nil {
		writeError(w, r, err)
		return
	}
	if requiresAdmin(values) {
		if err := h.checkAdminSecret(r); err != nil {
			writeError(w, r, err)
			return
		}
	}

	id, err := h.queue.Enqueue(r.Context(), jobs.StreamSettingsUpdate, values)
	if err != nil {
		writeError(w, r, errs.E(errs.SettingsUpdateFailed, "could not enqueue settings update", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": id})
}

func requiresAdmin(values map[string]string) bool {
	for k := range values {
		if database.SensitiveSettingKeys[strings.ToLower(k)] {
			return true
		}
	}
	return false
}

// checkAdminSecret validates the X-Admin-Secret header against the
// stored bcrypt hash. Before any hash is stored the ADMIN_SECRET
// environment value bootstraps access.
func (h *Handlers) checkAdminSecret(r *http.Request) error {
	secret := r.Header.Get(HeaderAdminSecret)
	if secret == "" {
		return errs.Ef(errs.Unauthorized, "admin secret required")
	}

	hash, err := h.db.GetSetting(r.Context(), database.SettingAdminSecretHash)
	switch {
	case err == nil:
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
			return errs.Ef(errs.Unauthorized, "admin secret mismatch")
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		if h.config.AdminSecret == "" {
			return errs.Ef(errs.Unauthorized, "no admin secret configured")
		}
		if subtle.ConstantTimeCompare([]byte(h.config.AdminSecret), []byte(secret)) != 1 {
			return errs.Ef(errs.Unauthorized, "admin secret mismatch")
		}
		return nil
	default:
		return err
	}
}
