// Package events is the in-process pub-sub bus behind the SSE endpoint.
//
// Topics are plain strings; subscribers get a bounded buffered channel.
// Publishing never blocks: when a subscriber's buffer is full the oldest
// queued event is dropped (and counted) so a stalled SSE client cannot
// back-pressure the thumbnail workers that publish.
package events
