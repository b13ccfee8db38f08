package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	raw := `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
  db: 2
postgres:
  url: "postgres://localhost/retrotunes"
gemini:
  apiKey: "secret"
  model: "gemini-2.0-flash"
  timeout: "8s"
game:
  questionsPerMinute: 10
  lowWaterMark: 2
  revealDelay: "1500ms"
  minLoading: "300ms"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port: %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis: %+v", cfg.Redis)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Fatalf("gemini: %+v", cfg.Gemini)
	}
	if cfg.Game.QuestionsPerMinute != 10 || cfg.Game.LowWaterMark != 2 {
		t.Fatalf("game: %+v", cfg.Game)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Fatalf("empty should fall back, got %v", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Fatalf("parse failed: %v", got)
	}
	if got := Duration("junk", 2*time.Second); got != 2*time.Second {
		t.Fatalf("malformed should fall back, got %v", got)
	}
}
