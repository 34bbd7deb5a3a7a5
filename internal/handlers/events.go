package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"media-gallery/internal/errs"
	"media-gallery/internal/events"
	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// sseKeepAlive is the comment-line interval that keeps idle connections
// open through proxies.
const sseKeepAlive = 15 * time.Second

// Events is the server-sent event stream. Each client gets a connected
// event with an opaque id, then thumbnail-generated events as the engine
// finishes work, with keep-alive comments in between. Disconnect cleans
// up the subscription.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, errs.Ef(errs.Internal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.bus.Subscribe(events.ThumbnailGenerated)
	defer h.bus.Unsubscribe(sub)

	metrics.SSEClientsConnected.Inc()
	defer metrics.SSEClientsConnected.Dec()

	clientID := uuid.NewString()
	if err := writeSSE(w, events.Connected, map[string]string{"clientId": clientID}); err != nil {
		return
	}
	flusher.Flush()
	logging.Debug("SSE client %s connected", clientID)

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			logging.Debug("SSE client %s disconnected", clientID)
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSE(w, ev.Topic, ev.Data); err != nil {
				return
			}
			flusher.Flush()
			metrics.SSEEventsSent.WithLabelValues(ev.Topic).Inc()
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE emits one event in wire format: an event line, a data line
// with the JSON payload, and a blank separator.
func writeSSE(w io.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
