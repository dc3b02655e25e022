package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/raido/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
}

func TestAuthConfig_EmptyModeDefaultsPassthrough(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to passthrough: %v", err)
	}
	if cfg.Mode != AuthModePassthrough {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModePassthrough)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_GitHubNeedsOwner(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("github backend without owner should fail")
	}
	cfg.Repository.Owner = "acme"
	cfg.Repository.Name = "templates"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDefaultConfig_GitBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Repository.Backend = BackendGit
	if err := cfg.Validate(); err != nil {
		t.Fatalf("git backend should not need owner: %v", err)
	}
}

func TestTranslateConfig_AnthropicNeedsKey(t *testing.T) {
	cfg := TranslateConfig{Provider: ProviderAnthropic}
	if err := cfg.Validate(); err == nil {
		t.Fatal("anthropic without api_key should fail")
	}
}

func TestLimitsConfig_Bounds(t *testing.T) {
	cfg := LimitsConfig{MaxRequestBytes: 1 << 20, BlobConcurrency: 64}
	if err := cfg.Validate(); err == nil {
		t.Fatal("blob concurrency 64 should fail")
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("RAIDO_TEST_TOKEN", "secret")
	content := `
repository:
  backend: git
  token: ${RAIDO_TEST_TOKEN}
branch_reset:
  enabled: true
content:
  message_footer: "via raido"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repository.Token != "secret" {
		t.Errorf("token = %q", cfg.Repository.Token)
	}
	settings := cfg.Settings()
	if !settings.BranchResetEnabled || settings.MessageFooter != "via raido" {
		t.Errorf("settings = %+v", settings)
	}
	if settings.IndexPath != "templates/index.json" || settings.DefaultBranch != "main" {
		t.Errorf("defaults lost: %+v", settings)
	}
}
