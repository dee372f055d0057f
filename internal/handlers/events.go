package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trafficguard/report-server/internal/services"
	"go.uber.org/zap"
)

// EventsHandler streams report events to connected viewers over SSE.
type EventsHandler struct {
	broadcaster *services.Broadcaster
	logger      *zap.SugaredLogger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broadcaster *services.Broadcaster, logger *zap.SugaredLogger) *EventsHandler {
	return &EventsHandler{broadcaster: broadcaster, logger: logger}
}

// Stream handles GET /api/v1/events.
// Subscribers receive events published while connected; there is no
// replay of history.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.broadcaster.Subscribe()
	defer cancel()

	h.logger.Infow("Event stream client connected", "remote", r.RemoteAddr)

	// Keep intermediaries from closing an idle stream.
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Infow("Event stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(n.Report)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Event, payload)
			flusher.Flush()
		}
	}
}
