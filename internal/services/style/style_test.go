package style

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func TestDefaultStyleIsEmpty(t *testing.T) {
	r := NewRegistry(testLogger(t))
	if got := r.Modifier(DefaultStyle); got != "" {
		t.Fatalf("default modifier: %q", got)
	}
	if got := r.Apply("base prompt", DefaultStyle, "\n"); got != "base prompt" {
		t.Fatalf("Apply with default changed the prompt: %q", got)
	}
}

func TestUnknownStyleFallsBackToEmpty(t *testing.T) {
	r := NewRegistry(testLogger(t))
	if got := r.Apply("base", "no-such-style", "\n"); got != "base" {
		t.Fatalf("unknown style changed the prompt: %q", got)
	}
}

func TestApplyPrependsModifier(t *testing.T) {
	r := NewRegistry(testLogger(t))
	got := r.Apply("base", "concise", " | ")
	if !strings.HasSuffix(got, " | base") {
		t.Fatalf("separator not used: %q", got)
	}
	if !strings.Contains(got, "briefly") {
		t.Fatalf("modifier missing: %q", got)
	}
}

func TestStyleLookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry(testLogger(t))
	if r.Modifier("Concise") != r.Modifier("concise") {
		t.Fatal("lookup is case sensitive")
	}
}

func TestOverlayAddsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "styles.yaml")
	overlay := "pirate: \"Respond like a pirate.\"\nconcise: \"Three words max.\"\ndefault: \"must be ignored\"\n"
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("STYLE_PRESETS_PATH", path)

	r := NewRegistry(testLogger(t))
	if got := r.Modifier("pirate"); got != "Respond like a pirate." {
		t.Fatalf("overlay style missing: %q", got)
	}
	if got := r.Modifier("concise"); got != "Three words max." {
		t.Fatalf("overlay did not override builtin: %q", got)
	}
	if got := r.Modifier(DefaultStyle); got != "" {
		t.Fatalf("overlay touched reserved default: %q", got)
	}
}

func TestBrokenOverlayKeepsBuiltins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "styles.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not valid"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("STYLE_PRESETS_PATH", path)

	r := NewRegistry(testLogger(t))
	if r.Modifier("concise") == "" {
		t.Fatal("builtins lost after overlay failure")
	}
}
