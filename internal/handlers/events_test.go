package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/trafficguard/report-server/internal/models"
	"github.com/trafficguard/report-server/internal/services"
	"go.uber.org/zap"
)

func TestStreamDeliversPublishedEvents(t *testing.T) {
	broadcaster := services.NewBroadcaster(nil, zap.NewNop().Sugar())
	h := NewEventsHandler(broadcaster, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Stream(rec, req)
		close(done)
	}()

	// Wait for the handler to register its subscription.
	deadline := time.Now().Add(time.Second)
	for broadcaster.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	reportID := uuid.New()
	broadcaster.Publish(context.Background(), models.Notification{
		Event:  "report-created",
		Report: &models.Report{ID: reportID, Status: models.StatusReported},
	})

	// Give the handler a moment to flush, then disconnect the client.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "event: report-created") {
		t.Errorf("stream body missing event line: %q", body)
	}
	if !strings.Contains(body, reportID.String()) {
		t.Errorf("stream body missing report payload: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if broadcaster.SubscriberCount() != 0 {
		t.Error("subscription leaked after disconnect")
	}
}
