package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `server:
  url: https://chat.example.com
  timeout: 5s
model:
  provider: anthropic
  name: claude-sonnet-4-20250514
drafts:
  backend: file
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOATCHAT_MODEL_NAME", "claude-opus")
	t.Setenv("CHAT_TOKEN", "s3cret")
	t.Setenv("FLOATCHAT_SERVER_TOKEN", "${CHAT_TOKEN}")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.URL != "https://chat.example.com" {
		t.Errorf("server.url=%q", cfg.Server.URL)
	}
	if cfg.Server.Timeout != 5*time.Second {
		t.Errorf("server.timeout=%v", cfg.Server.Timeout)
	}
	if cfg.Model.Provider != "anthropic" || cfg.Model.Name != "claude-opus" {
		t.Errorf("model=%+v", cfg.Model)
	}
	if cfg.Server.Token != "s3cret" {
		t.Errorf("server.token=%q, want resolved env value", cfg.Server.Token)
	}
	if cfg.Drafts.Backend != "file" {
		t.Errorf("drafts.backend=%q", cfg.Drafts.Backend)
	}
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("drafts:\n  backend: redis\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected invalid backend to fail")
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.Server.URL = "http://10.0.0.2:8000"
	want.Model = ModelConfig{Provider: "gemini", Name: "gemini/gemini-2.5-flash"}
	want.Log.File = "/tmp/floatchat.log"

	if err := Save(want, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()

	cfg.ApplyOverrides("anthropic", "claude-sonnet-4-20250514")
	if cfg.Model.Provider != "anthropic" || cfg.Model.Name != "claude-sonnet-4-20250514" {
		t.Fatalf("model=%+v", cfg.Model)
	}

	cfg.ApplyOverrides("", "claude-opus")
	if cfg.Model.Provider != "anthropic" {
		t.Fatalf("provider changed unexpectedly: %q", cfg.Model.Provider)
	}
	if cfg.Model.Name != "claude-opus" {
		t.Fatalf("model=%q, want %q", cfg.Model.Name, "claude-opus")
	}
}

func TestResolveValue(t *testing.T) {
	t.Setenv("FLOATCHAT_TEST_VALUE", "from-env")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  literal  ", "literal"},
		{"$FLOATCHAT_TEST_VALUE", "from-env"},
		{"${FLOATCHAT_TEST_VALUE}", "from-env"},
		{"$(echo from-command)", "from-command"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ResolveValue(tc.in)
			if err != nil {
				t.Fatalf("ResolveValue(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ResolveValue(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveValueCommandFailure(t *testing.T) {
	if _, err := ResolveValue("$(exit 3)"); err == nil {
		t.Fatal("expected failing command to error")
	}
}
