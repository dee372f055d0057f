package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Empty values read as unset, so pinning them shields the test
	// from whatever happens to be in the ambient environment.
	for _, key := range []string{"PORT", "MAX_UPLOAD_MB", "MAX_DETECT_MB", "DETECTOR_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Errorf("MaxUploadBytes = %d, want 50 MiB", cfg.MaxUploadBytes)
	}
	if cfg.MaxDetectBytes != 10<<20 {
		t.Errorf("MaxDetectBytes = %d, want 10 MiB", cfg.MaxDetectBytes)
	}
	if cfg.DetectorTimeout != 60*time.Second {
		t.Errorf("DetectorTimeout = %s, want 60s", cfg.DetectorTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_DETECT_MB", "5")
	t.Setenv("PYTHON_BIN", "python")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.MaxDetectBytes != 5<<20 {
		t.Errorf("MaxDetectBytes = %d, want 5 MiB", cfg.MaxDetectBytes)
	}
	if cfg.PythonBin != "python" {
		t.Errorf("PythonBin = %q, want python", cfg.PythonBin)
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("production config without DATABASE_URL should fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/reports")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("production config with default JWT secret should fail")
	}
}
