package handlers

import (
	"net/http"
	"testing"

	"media-gallery/internal/database"
	"media-gallery/internal/mediatypes"
)

func TestSubmitCaptionQueuesJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	seedItems(t, env.db, []database.Item{
		{Name: "beach.jpg", Path: "trips/beach.jpg", Type: mediatypes.TypePhoto, Mtime: 2000},
	})

	w := env.do(t, http.MethodPost, "/api/captions", map[string]string{"path": "trips/beach.jpg"}, nil)
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

	// The job is durably readable by id.
	jw := env.get(t, "/api/jobs/"+resp.JobID)
	if jw.Code != http.StatusOK {
		t.Fatalf("job status = %d, want 200", jw.Code)
	}
	var status struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	decodeJSON(t, jw, &status)
	if status.ID != resp.JobID || status.State != "queued" {
		t.Errorf("job status = %+v, want queued %s", status, resp.JobID)
	}
}

func TestSubmitCaptionDeduplicatesActiveJobs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	seedItems(t, env.db, []database.Item{
		{Name: "beach.jpg", Path: "trips/beach.jpg", Type: mediatypes.TypePhoto, Mtime: 2000},
	})

	body := map[string]string{"path": "trips/beach.jpg"}

	first := env.do(t, http.MethodPost, "/api/captions", body, nil)
	second := env.do(t, http.MethodPost, "/api/captions", body, nil)

	var a, b struct {
		JobID string `json:"jobId"`
	}
	decodeJSON(t, first, &a)
	decodeJSON(t, second, &b)
	if a.JobID == "" || a.JobID != b.JobID {
		t.Errorf("job ids = %q / %q, want the same active job", a.JobID, b.JobID)
	}
}

func TestSubmitCaptionChecksTheIndex(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	seedItems(t, env.db, []database.Item{
		{Name: "trips", Path: "trips", Type: mediatypes.TypeAlbum, Mtime: 1000},
	})

	w := env.do(t, http.MethodPost, "/api/captions", map[string]string{"path": "nowhere.jpg"}, nil)
	wantErrorCode(t, w, http.StatusNotFound, "PATH_NOT_FOUND")

	w = env.do(t, http.MethodPost, "/api/captions", map[string]string{"path": "trips"}, nil)
	wantErrorCode(t, w, http.StatusBadRequest, "VALIDATION_ERROR")

	w = env.do(t, http.MethodPost, "/api/captions", map[string]string{}, nil)
	wantErrorCode(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestGetJobUnknownIdIs404(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	wantErrorCode(t, env.get(t, "/api/jobs/no-such-job"), http.StatusNotFound, "PATH_NOT_FOUND")
}
