// Package jobs provides durable background queues on Redis streams.
//
// Two queues exist: captioning (consumed by an external worker) and
// settings-update (consumed in-process by [Worker]). Submission is
// fire-and-forget: Enqueue returns a job id immediately and callers read
// progress from a per-job status hash (jobs:status:<id>). Each queue is
// one stream with one consumer group, so deliveries survive restarts.
//
// # Retry
//
// A failed delivery stays pending in the group and is reclaimed once its
// idle time passes the attempt's backoff (exponential from the configured
// base). The attempt cap marks the job failed and acknowledges it so
// nothing loops forever; validation failures skip the remaining attempts
// outright since retrying cannot fix the payload.
//
// # Deduplication
//
// EnqueueOrAttach takes a caller-chosen fingerprint and claims it with
// HSETNX. A duplicate submission returns the id of the job already doing
// the work instead of enqueuing a second copy.
package jobs
