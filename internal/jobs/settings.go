package jobs

import (
	"context"
	"encoding/json"

	"media-gallery/internal/database"
	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
)

// CaptionPayload is the captioning job body. The consumer is an external
// worker; this process only submits and reports status.
type CaptionPayload struct {
	Path string `json:"path"`
}

// CaptionFingerprint dedups caption submissions per media path.
func CaptionFingerprint(relPath string) string {
	return "caption:" + relPath
}

// NewSettingsHandler returns the settings-update consumer. Writes go
// through the settings store's validation, so forbidden keys are refused
// even if a bad payload reached the queue.
func NewSettingsHandler(db *database.Manager) Handler {
	return func(ctx context.Context, payload []byte) error {
		var values map[string]string
		if err := json.Unmarshal(payload, &values); err != nil {
			return errs.E(errs.ValidationError, "decode settings payload", err)
		}
		if len(values) == 0 {
			return errs.Ef(errs.ValidationError, "settings payload is empty")
		}
		if err := database.ValidateSettingKeys(values); err != nil {
			return err
		}
		if err := db.SetSettings(ctx, values); err != nil {
			return err
		}
		logging.Info("Applied settings update (%d keys)", len(values))
		return nil
	}
}
