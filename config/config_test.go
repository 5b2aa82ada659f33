package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("addr: got %q", c.Server.Addr)
	}
	if c.Camera.Kind != "sim" {
		t.Errorf("camera kind: got %q", c.Camera.Kind)
	}
	if c.Database.Path == "" {
		t.Error("database path not defaulted")
	}
}

func TestLoadFileOverridesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beamscope.yaml")
	doc := `
server:
  addr: ":9090"
pipeline:
  flush_rows: 10
  flush_interval: 250ms
camera:
  kind: sim
  sim:
    width: 320
    height: 240
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9090" {
		t.Errorf("addr: got %q, want :9090", c.Server.Addr)
	}
	if c.Pipeline.FlushRows != 10 {
		t.Errorf("flush_rows: got %d, want 10", c.Pipeline.FlushRows)
	}
	if c.Pipeline.FlushInterval != 250*time.Millisecond {
		t.Errorf("flush_interval: got %v", c.Pipeline.FlushInterval)
	}
	if c.Camera.Sim.Width != 320 || c.Camera.Sim.Height != 240 {
		t.Errorf("sim size: got %dx%d", c.Camera.Sim.Width, c.Camera.Sim.Height)
	}
	// Unset fields still get defaults.
	if c.Database.Path == "" {
		t.Error("database path not defaulted")
	}
	if c.Log.Level != "info" {
		t.Errorf("log level: got %q", c.Log.Level)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [not a map"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
