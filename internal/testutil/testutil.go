// Package testutil provides fixtures and fake MGnify/ENA services for
// mgtk tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nishad/mgtk/internal/config"
)

// TempFile writes content to name inside a fresh temporary directory and
// returns its path.
func TempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// RequireEnv skips the test if the environment variable is not set.
func RequireEnv(t *testing.T, name string) string {
	t.Helper()
	value := os.Getenv(name)
	if value == "" {
		t.Skipf("skipping: %s not set", name)
	}
	return value
}

// SkipIfShort skips the test if running in short mode.
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping in short mode: %s", reason)
	}
}

// Config returns a configuration pointing every endpoint at srv, with
// retry waits short enough for tests.
func Config(srv *Server) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Endpoints = srv.Endpoints()
	cfg.HTTP.RetryWait = time.Millisecond
	cfg.HTTP.RetryMaxWait = 5 * time.Millisecond
	cfg.HTTP.Retries = 1
	cfg.Catalog.Enabled = false
	return cfg
}
