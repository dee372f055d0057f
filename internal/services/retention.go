package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetentionWorker periodically sweeps the staging directory for
// transient evidence files left behind by crashed requests. The happy
// path removes its own temp files; this catches the rest.
type RetentionWorker struct {
	stagingDir string
	maxAge     time.Duration
	logger     *zap.SugaredLogger
}

// NewRetentionWorker creates a new background staging sweeper
func NewRetentionWorker(stagingDir string, maxAge time.Duration, logger *zap.SugaredLogger) *RetentionWorker {
	return &RetentionWorker{stagingDir: stagingDir, maxAge: maxAge, logger: logger}
}

// Start begins the periodic sweep loop
func (w *RetentionWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial sweep
	w.sweep()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Retention worker stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RetentionWorker) sweep() {
	entries, err := os.ReadDir(w.stagingDir)
	if err != nil {
		w.logger.Warnw("Staging sweep failed", "dir", w.stagingDir, "error", err)
		return
	}

	cutoff := time.Now().Add(-w.maxAge)
	removed := 0

	for _, entry := range entries {
		// Only files this server staged; the staging dir may be shared.
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "evidence-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.stagingDir, entry.Name())); err == nil {
			removed++
		}
	}

	if removed > 0 {
		w.logger.Infow("Staging sweep complete", "removed", removed)
	}
}
