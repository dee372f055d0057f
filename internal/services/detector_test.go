package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeWorker writes a shell script standing in for the vision worker
// and returns its path. Invoked as `sh <script> <evidencePath>`.
func fakeWorker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detect.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake worker: %v", err)
	}
	return path
}

func newTestDetector(t *testing.T, script string, timeout time.Duration) *DetectorService {
	t.Helper()
	return NewDetectorService("/bin/sh", script, timeout, zap.NewNop().Sugar())
}

const workerOutput = `{
	"detections": [
		{"class": "car", "confidence": 0.95, "bbox": [10, 20, 110, 220]},
		{"class": "motorcycle", "confidence": 0.88, "bbox": [300, 40, 420, 260]}
	],
	"violations": [
		{"type": "helmetless_driving", "description": "Motorcycle rider without helmet detected", "bbox": [300, 40, 420, 260], "confidence": 0.91}
	],
	"total_vehicles": 2,
	"total_violations": 1
}`

func TestDetectParsesWorkerPayload(t *testing.T) {
	script := fakeWorker(t, "cat <<'EOF'\n"+workerOutput+"\nEOF")
	d := newTestDetector(t, script, 5*time.Second)

	result := d.Detect(context.Background(), "evidence.jpg")
	if result == nil {
		t.Fatal("expected a detection result")
	}
	if len(result.Detections) != 2 {
		t.Fatalf("detections = %d, want 2", len(result.Detections))
	}
	if len(result.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(result.Violations))
	}
	v := result.Violations[0]
	if v.Type != "helmetless_driving" || v.Confidence != 0.91 {
		t.Errorf("violation = %+v, payload not round-tripped", v)
	}
	if result.TotalVehicles != 2 || result.TotalViolations != 1 {
		t.Errorf("totals = (%d, %d), want (2, 1)", result.TotalVehicles, result.TotalViolations)
	}
}

func TestDetectEmptyScene(t *testing.T) {
	script := fakeWorker(t, `echo '{"detections": [], "violations": [], "total_vehicles": 0, "total_violations": 0}'`)
	d := newTestDetector(t, script, 5*time.Second)

	result := d.Detect(context.Background(), "evidence.jpg")
	if result == nil {
		t.Fatal("empty scene is a valid result, not a failure")
	}
	if result.Detections == nil || result.Violations == nil {
		t.Error("absent detections should be empty slices, not nil")
	}
}

func TestDetectNonZeroExitIsSoftFailure(t *testing.T) {
	script := fakeWorker(t, "echo 'model load failed' >&2\nexit 1")
	d := newTestDetector(t, script, 5*time.Second)

	if result := d.Detect(context.Background(), "evidence.jpg"); result != nil {
		t.Errorf("non-zero exit should yield nil result, got %+v", result)
	}
}

func TestDetectMalformedOutputIsSoftFailure(t *testing.T) {
	script := fakeWorker(t, "echo 'not json at all'")
	d := newTestDetector(t, script, 5*time.Second)

	if result := d.Detect(context.Background(), "evidence.jpg"); result != nil {
		t.Errorf("malformed output should yield nil result, got %+v", result)
	}
}

func TestDetectWorkerErrorPayloadIsSoftFailure(t *testing.T) {
	script := fakeWorker(t, `echo '{"error": "Could not read image"}'`)
	d := newTestDetector(t, script, 5*time.Second)

	if result := d.Detect(context.Background(), "evidence.jpg"); result != nil {
		t.Errorf("worker error payload should yield nil result, got %+v", result)
	}
}

func TestDetectTimeoutKillsWorker(t *testing.T) {
	script := fakeWorker(t, "sleep 5\necho '{}'")
	d := newTestDetector(t, script, 100*time.Millisecond)

	start := time.Now()
	result := d.Detect(context.Background(), "evidence.jpg")
	elapsed := time.Since(start)

	if result != nil {
		t.Errorf("timeout should yield nil result, got %+v", result)
	}
	if elapsed > 2*time.Second {
		t.Errorf("detect blocked for %s; worker was not cancelled", elapsed)
	}
}
