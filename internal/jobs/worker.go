package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// Handler processes one decoded job payload. A ValidationError return is
// treated as permanent; anything else is retried up to the attempt cap.
type Handler func(ctx context.Context, payload []byte) error

// Config carries the worker tunables.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
}

// Worker consumes one stream with at-least-once delivery. Transient
// failures leave the message pending; the reclaim pass takes it back once
// its per-attempt backoff has elapsed.
type Worker struct {
	q        *Queue
	stream   string
	handler  Handler
	cfg      Config
	consumer string

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorker(q *Queue, stream string, handler Handler, cfg Config) *Worker {
	cfg.applyDefaults()
	return &Worker{
		q:        q,
		stream:   stream,
		handler:  handler,
		cfg:      cfg,
		consumer: "worker-" + uuid.NewString()[:8],
	}
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
	logging.Info("Job worker started for %s", w.stream)
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		logging.Debug("jobs: worker for %s stopped", w.stream)
	})
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for ctx.Err() == nil {
		w.reclaim(ctx)

		streams, err := w.q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: w.consumer,
			Streams:  []string{w.stream, ">"},
			Count:    10,
			Block:    w.cfg.BackoffBase,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redis.Nil) {
				logging.Warn("jobs: read %s: %v", w.stream, err)
			}
			// Nothing delivered. Nap so servers whose blocking read
			// returns immediately do not spin the loop.
			select {
			case <-time.After(w.cfg.BackoffBase / 2):
			case <-ctx.Done():
				return
			}
			continue
		}
		for _, st := range streams {
			for _, msg := range st.Messages {
				w.process(ctx, msg)
			}
		}
	}
}

// reclaim takes over pending deliveries whose backoff has elapsed. A
// message delivered n times waits base*2^(n-1) before the next try, so
// retries space out 5s, 10s, 20s with the defaults.
func (w *Worker) reclaim(ctx context.Context) {
	pending, err := w.q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: w.stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  50,
	}).Result()
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, redis.Nil) {
			logging.Warn("jobs: scan pending on %s: %v", w.stream, err)
		}
		return
	}

	for _, p := range pending {
		wait := w.backoffFor(p.RetryCount)
		if p.Idle < wait {
			continue
		}
		claimed, _, err := w.q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   w.stream,
			Group:    group,
			MinIdle:  wait,
			Start:    p.ID,
			Count:    1,
			Consumer: w.consumer,
		}).Result()
		if err != nil || len(claimed) == 0 || claimed[0].ID != p.ID {
			// Another consumer won the race; leave it alone.
			continue
		}
		metrics.JobRetriesTotal.WithLabelValues(w.stream).Inc()
		w.process(ctx, claimed[0])
	}
}

func (w *Worker) backoffFor(deliveries int64) time.Duration {
	if deliveries < 1 {
		deliveries = 1
	}
	if deliveries > 16 {
		deliveries = 16
	}
	return w.cfg.BackoffBase << (deliveries - 1)
}

func (w *Worker) process(ctx context.Context, msg redis.XMessage) {
	id, _ := msg.Values["id"].(string)
	fp, _ := msg.Values["fp"].(string)
	raw, _ := msg.Values["job"].(string)
	if id == "" || raw == "" {
		logging.Warn("jobs: malformed message %s on %s", msg.ID, w.stream)
		w.ack(ctx, msg.ID, fp)
		return
	}

	attempts := w.deliveryCount(ctx, msg.ID)
	w.q.setStatus(ctx, id, StateRunning, attempts, "")

	start := time.Now()
	err := w.handler(ctx, []byte(raw))
	metrics.JobDuration.WithLabelValues(w.stream).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		w.q.setStatus(ctx, id, StateDone, attempts, "")
		metrics.JobsCompletedTotal.WithLabelValues(w.stream, "done").Inc()
		w.ack(ctx, msg.ID, fp)
	case attempts >= w.cfg.MaxAttempts || errs.Is(err, errs.ValidationError):
		logging.Warn("jobs: %s job %s failed permanently after %d attempts: %v", w.stream, id, attempts, err)
		w.q.setStatus(ctx, id, StateFailed, attempts, err.Error())
		metrics.JobsCompletedTotal.WithLabelValues(w.stream, "failed").Inc()
		w.ack(ctx, msg.ID, fp)
	default:
		logging.Debug("jobs: %s job %s attempt %d failed, will retry: %v", w.stream, id, attempts, err)
		w.q.setStatus(ctx, id, StateQueued, attempts, err.Error())
		// Left unacknowledged; reclaim takes it after the backoff.
	}
}

// deliveryCount reads how many times a message has been delivered.
// Errors count as exhausted so a broken entry cannot retry forever.
func (w *Worker) deliveryCount(ctx context.Context, messageID string) int {
	pending, err := w.q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: w.stream,
		Group:  group,
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return w.cfg.MaxAttempts
	}
	return int(pending[0].RetryCount)
}

func (w *Worker) ack(ctx context.Context, messageID, fingerprint string) {
	if err := w.q.rdb.XAck(ctx, w.stream, group, messageID).Err(); err != nil {
		logging.Warn("jobs: ack %s on %s: %v", messageID, w.stream, err)
	}
	if fingerprint != "" {
		w.q.releaseFingerprint(ctx, fingerprint)
	}
}
