package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeKeyFile(t, "  secret-value \n")

	got, err := Load(Source{Name: "test key", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "secret-value" {
		t.Fatalf("expected trimmed secret, got %q", got)
	}
}

func TestLoadInlineValue(t *testing.T) {
	got, err := Load(Source{Name: "test key", Value: " inline "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "inline" {
		t.Fatalf("expected inline, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(Source{Name: "test key"}); err == nil {
		t.Fatalf("expected error for unconfigured secret")
	}

	empty := writeKeyFile(t, "   ")
	if _, err := Load(Source{Name: "test key", File: empty}); err == nil {
		t.Fatalf("expected error for empty key file")
	}

	if _, err := Load(Source{Name: "test key", File: "/nonexistent/key"}); err == nil {
		t.Fatalf("expected error for missing key file")
	}
}

func TestResolveAPIKeyPrefersOrganizationKey(t *testing.T) {
	path := writeKeyFile(t, "system-key")

	got := ResolveAPIKey(" org-key ", Source{Name: "gemini api key", File: path})
	if got != "org-key" {
		t.Fatalf("expected organization key to win, got %q", got)
	}
}

func TestResolveAPIKeyFallsBackToSystemKey(t *testing.T) {
	path := writeKeyFile(t, "system-key")

	got := ResolveAPIKey("", Source{Name: "gemini api key", File: path})
	if got != "system-key" {
		t.Fatalf("expected system key fallback, got %q", got)
	}
}

func TestResolveAPIKeyUnconfigured(t *testing.T) {
	got := ResolveAPIKey("", Source{Name: "gemini api key"})
	if got != "" {
		t.Fatalf("expected empty key when nothing is configured, got %q", got)
	}
}
