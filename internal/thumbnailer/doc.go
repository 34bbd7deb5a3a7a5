// Package thumbnailer owns the mirrored thumbnail tree.
//
// A fixed pool of workers consumes two in-memory queues: high priority
// for user-visible requests (which insert at the head) and low priority
// for background fill-in. High-priority work always drains first, and
// the last idle worker never takes background work so on-demand requests
// never wait behind a bulk import. An in-flight set serializes work per
// path.
//
// The engine tracks per-path state in the thumb_status table. Failures
// retry with exponential backoff; paths that exhaust their retries are
// marked in Redis for seven days and recorded as failed. Errors that
// identify the source file itself as damaged count separately and can
// delete the source once they cross a threshold.
//
// Two background loops keep the table honest: an idle generator pages
// rows whose thumbnail is missing or stale, and a reconciler re-stats
// "exists" rows and resets any whose mirrored file has vanished.
package thumbnailer
