package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReverseReturnsDisplayName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s, want /reverse", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			t.Errorf("format = %s, want jsonv2", r.URL.Query().Get("format"))
		}
		w.Write([]byte(`{"display_name": "MG Road, Bengaluru, Karnataka, India"}`))
	}))
	defer server.Close()

	svc := NewGeocodeService(server.URL, time.Second, nil, zap.NewNop().Sugar())

	addr := svc.Reverse(context.Background(), 12.9716, 77.5946)
	if addr != "MG Road, Bengaluru, Karnataka, India" {
		t.Errorf("addr = %q", addr)
	}
}

func TestReverseSwallowsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewGeocodeService(server.URL, time.Second, nil, zap.NewNop().Sugar())

	if addr := svc.Reverse(context.Background(), 12.9716, 77.5946); addr != "" {
		t.Errorf("addr = %q, want empty on failure", addr)
	}
}

func TestReverseSwallowsMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	svc := NewGeocodeService(server.URL, time.Second, nil, zap.NewNop().Sugar())

	if addr := svc.Reverse(context.Background(), 12.9716, 77.5946); addr != "" {
		t.Errorf("addr = %q, want empty on malformed response", addr)
	}
}

func TestReverseSwallowsUnreachableServer(t *testing.T) {
	svc := NewGeocodeService("http://127.0.0.1:1", 200*time.Millisecond, nil, zap.NewNop().Sugar())

	if addr := svc.Reverse(context.Background(), 12.9716, 77.5946); addr != "" {
		t.Errorf("addr = %q, want empty when unreachable", addr)
	}
}
