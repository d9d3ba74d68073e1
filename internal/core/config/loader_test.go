package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_WS_ENDPOINT", "wss://tracking.example.com/ws")
	defer os.Unsetenv("TEST_WS_ENDPOINT")

	path := writeTempConfig(t, `
connection:
  endpoint: ${TEST_WS_ENDPOINT}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Connection.Endpoint != "wss://tracking.example.com/ws" {
		t.Errorf("Expected endpoint wss://tracking.example.com/ws, got %s", cfg.Connection.Endpoint)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 9090
logging:
  level: debug
  format: text
connection:
  endpoint: ws://localhost:8765/ws
  reconnect_base_delay: 2s
  max_reconnect_delay: 30s
  max_reconnect_attempts: 5
  heartbeat_interval: 15s
  queue_capacity: 200
  binary_frames: true
recovery:
  max_concurrent: 2
  default_step_timeout: 20s
  history_size: 25
pipeline:
  buffer_size: 60
  sync_window: 100ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Connection.ReconnectBaseDelay != 2*time.Second {
		t.Errorf("Expected base delay 2s, got %v", cfg.Connection.ReconnectBaseDelay)
	}
	if cfg.Connection.QueueCapacity != 200 {
		t.Errorf("Expected queue capacity 200, got %d", cfg.Connection.QueueCapacity)
	}
	if !cfg.Connection.BinaryFrames {
		t.Error("Expected binary frames enabled")
	}
	if cfg.Recovery.DefaultStepTimeout != 20*time.Second {
		t.Errorf("Expected step timeout 20s, got %v", cfg.Recovery.DefaultStepTimeout)
	}
	if cfg.Pipeline.SyncWindow != 100*time.Millisecond {
		t.Errorf("Expected sync window 100ms, got %v", cfg.Pipeline.SyncWindow)
	}
}

func TestLoad_DefaultPort(t *testing.T) {
	path := writeTempConfig(t, `
connection:
  endpoint: ws://localhost:8765/ws
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoad_MissingEndpoint(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 8080
`)

	if _, err := Load(path); err == nil {
		t.Error("Expected error for missing connection.endpoint")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}
