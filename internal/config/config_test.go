package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solstice", "config.json")
	m := NewManagerAt(path)

	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
	cfg := m.Get()
	if cfg.Search.MaxResults != 500 || cfg.Search.MaxConcurrency != 20 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.FolderSize.MaxDepth != 11 || cfg.Undo.Capacity != 50 {
		t.Errorf("unexpected defaults: folderSize=%d undo=%d", cfg.FolderSize.MaxDepth, cfg.Undo.Capacity)
	}
	if got := cfg.Search.SearchTimeout(); got != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", got)
	}
}

func TestLoadParseErrorFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load should not fail on parse error: %v", err)
	}
	if m.ParseError() == nil {
		t.Error("expected ParseError to be retained")
	}
	if m.Get().Search.MaxResults != 500 {
		t.Error("expected defaults after parse error")
	}
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"search":{"maxResults":10,"maxConcurrency":-1,"timeout":"bogus"},"undo":{"capacity":0}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	cfg := m.Get()
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"maxResults kept", cfg.Search.MaxResults, 10},
		{"maxConcurrency reset", cfg.Search.MaxConcurrency, 20},
		{"timeout reset", cfg.Search.Timeout, "30s"},
		{"undo reset", cfg.Undo.Capacity, 50},
		{"folder depth default", cfg.FolderSize.MaxDepth, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if err := m.Update(func(c *Config) { c.Metrics.Addr = ":9090" }); err != nil {
		t.Fatal(err)
	}

	reloaded := NewManagerAt(path)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if reloaded.Get().Metrics.Addr != ":9090" {
		t.Errorf("metrics addr not persisted: %q", reloaded.Get().Metrics.Addr)
	}
}

func TestGenerateConfigBacksUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"undo":{"capacity":3}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	backup, err := GenerateConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if backup == "" {
		t.Fatal("expected a backup path")
	}
	if _, err := os.Stat(backup); err != nil {
		t.Errorf("backup missing: %v", err)
	}
}
