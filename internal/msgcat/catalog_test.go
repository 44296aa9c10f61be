package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("start.queued", nil)
	if err != nil || s == "" {
		t.Fatalf("Render start.queued: %q %v", s, err)
	}
	s, err = c.Render("game.win", map[string]string{"Winner": "Alice"})
	if err != nil || !strings.Contains(s, "Alice") {
		t.Fatalf("Render game.win: %q %v", s, err)
	}
}

func TestRenderMissingKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	// Text falls back to the key instead of failing
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("Text fallback: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "start:\n  queued: \"custom queued\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("start.queued", nil)
	if err != nil || s != "custom queued" {
		t.Fatalf("override not applied: %q %v", s, err)
	}
	// untouched keys keep their defaults
	if _, err := c.Render("leave.left", nil); err != nil {
		t.Fatalf("default lost after override: %v", err)
	}
}
