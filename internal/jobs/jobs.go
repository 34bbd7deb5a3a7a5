package jobs

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"media-gallery/internal/cache"
	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// Stream names, one per queue. Captioning is produced here and consumed
// by an external worker; settings updates are consumed in-process.
const (
	StreamCaptioning     = "jobs:captioning"
	StreamSettingsUpdate = "jobs:settings-update"
)

const (
	group = "media-gallery"

	// statusTTL keeps finished statuses readable for a day without
	// accumulating forever.
	statusTTL = 24 * time.Hour

	fingerprintHash = "jobs:fp"
)

// Job states as stored in the status hash.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Status is the readable state of one job.
type Status struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

func statusKey(id string) string { return "jobs:status:" + id }

// Queue submits jobs and reads their status.
type Queue struct {
	rdb *redis.Client
}

func NewQueue(c *cache.Client) *Queue {
	return &Queue{rdb: c.Handle()}
}

// EnsureStreams creates the consumer groups. Re-creation is the normal
// case on restart and is not an error.
func (q *Queue) EnsureStreams(ctx context.Context) {
	for _, stream := range []string{StreamCaptioning, StreamSettingsUpdate} {
		err := q.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			logging.Warn("jobs: create consumer group for %s: %v", stream, err)
		}
	}
}

// Enqueue submits one job and returns its id without waiting for it.
func (q *Queue) Enqueue(ctx context.Context, stream string, payload interface{}) (string, error) {
	return q.submit(ctx, stream, uuid.NewString(), "", payload)
}

// EnqueueOrAttach submits a job unless an active job holds the same
// fingerprint, in which case that job's id is returned instead. The slot
// frees when the holder finishes, so repeated submissions for the same
// input collapse to one running job.
func (q *Queue) EnqueueOrAttach(ctx context.Context, stream, fingerprint string, payload interface{}) (string, error) {
	id := uuid.NewString()
	claimed, err := q.rdb.HSetNX(ctx, fingerprintHash, fingerprint, id).Result()
	if err != nil {
		return "", errs.E(errs.Internal, "reserve job fingerprint", err)
	}
	if !claimed {
		existing, err := q.rdb.HGet(ctx, fingerprintHash, fingerprint).Result()
		if err != nil {
			return "", errs.E(errs.Internal, "read attached job id", err)
		}
		return existing, nil
	}
	return q.submit(ctx, stream, id, fingerprint, payload)
}

func (q *Queue) submit(ctx context.Context, stream, id, fingerprint string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errs.E(errs.ValidationError, "encode job payload", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, statusKey(id), "state", StateQueued, "attempts", 0, "error", "")
	pipe.Expire(ctx, statusKey(id), statusTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"id": id, "fp": fingerprint, "job": string(data)},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errs.E(errs.Internal, "enqueue job", err)
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(stream).Inc()
	logging.Debug("jobs: enqueued %s on %s", id, stream)
	return id, nil
}

// Status reads one job's status. Unknown ids report not-found, which also
// covers statuses that have aged out.
func (q *Queue) Status(ctx context.Context, id string) (*Status, error) {
	vals, err := q.rdb.HGetAll(ctx, statusKey(id)).Result()
	if err != nil {
		return nil, errs.E(errs.Internal, "read job status", err)
	}
	if len(vals) == 0 {
		return nil, errs.Ef(errs.PathNotFound, "no such job: %s", id)
	}
	attempts, _ := strconv.Atoi(vals["attempts"])
	return &Status{ID: id, State: vals["state"], Attempts: attempts, Error: vals["error"]}, nil
}

func (q *Queue) setStatus(ctx context.Context, id, state string, attempts int, errMsg string) {
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, statusKey(id), "state", state, "attempts", attempts, "error", errMsg)
	pipe.Expire(ctx, statusKey(id), statusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Debug("jobs: update status of %s: %v", id, err)
	}
}

func (q *Queue) releaseFingerprint(ctx context.Context, fingerprint string) {
	if err := q.rdb.HDel(ctx, fingerprintHash, fingerprint).Err(); err != nil {
		logging.Debug("jobs: release fingerprint %s: %v", fingerprint, err)
	}
}
