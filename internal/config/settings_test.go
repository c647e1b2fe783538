package config

import (
	"os"
	"path/filepath"
	"testing"

	"bastion/internal/domain"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	def := Default()
	if cfg.Login.ShortAfter != def.Login.ShortAfter || cfg.Login.LongAfter != def.Login.LongAfter {
		t.Fatalf("expected default thresholds, got %+v", cfg.Login)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	payload := `{
		"login": {"short_after": 3, "long_after": 12, "username_denylist": [" Admin ", "admin", "guest"]},
		"sources": [
			{"name": "aws", "kind": "aws", "url": "https://ip-ranges.amazonaws.com/ip-ranges.json", "scope": 2},
			{"name": "broken", "kind": "unknown", "url": "https://example.com/list.txt", "scope": 3}
		]
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Login.ShortAfter != 3 || cfg.Login.LongAfter != 12 {
		t.Fatalf("thresholds not applied: %+v", cfg.Login)
	}
	if len(cfg.Login.UsernameDenylist) != 2 {
		t.Fatalf("denylist not deduplicated: %v", cfg.Login.UsernameDenylist)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("invalid source kind not filtered: %+v", cfg.Sources)
	}
	if cfg.Sources[0].Scope != domain.ScopeComments {
		t.Fatalf("source scope = %v, want comments", cfg.Sources[0].Scope)
	}
}

func TestDenylistedUsername(t *testing.T) {
	cfg := Default()

	if !cfg.DenylistedUsername("Administrator") {
		t.Fatal("expected case-insensitive denylist hit")
	}
	if cfg.DenylistedUsername("alice") {
		t.Fatal("unexpected denylist hit for alice")
	}
}
