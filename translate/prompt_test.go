package translate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Prompt construction
// ---------------------------------------------------------------------------

func TestResolvedPrompt_DefaultTemplate(t *testing.T) {
	opts := Options{LanguageName: "Vietnamese"}

	prompt := opts.resolvedPrompt()
	if !strings.Contains(prompt, "into Vietnamese") {
		t.Errorf("language name not substituted:\n%s", prompt)
	}
	if strings.Contains(prompt, "{{targetLang}}") {
		t.Error("placeholder left unresolved")
	}
	if !strings.HasSuffix(prompt, "Input array:") {
		t.Errorf("prompt must end with the array lead-in, got %q", prompt[len(prompt)-30:])
	}
}

func TestResolvedPrompt_CustomTemplateWins(t *testing.T) {
	opts := Options{Prompt: "Translate these lines to {{targetLang}}.", LanguageName: "Russian"}

	if got := opts.resolvedPrompt(); got != "Translate these lines to Russian." {
		t.Errorf("got %q", got)
	}
}

func TestResolvedPrompt_ResolvesLanguageCode(t *testing.T) {
	opts := Options{Language: "vi"}

	if got := opts.resolvedPrompt(); !strings.Contains(got, "Vietnamese") {
		t.Errorf("language code not resolved to a display name:\n%s", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	got, err := buildPrompt("INSTRUCTIONS", []string{"Xin chào", "OK?"})
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	want := "INSTRUCTIONS\n[\"Xin chào\",\"OK?\"]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadPromptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("  custom prompt\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := LoadPromptFile(path)
	if err != nil {
		t.Fatalf("LoadPromptFile: %v", err)
	}
	if got != "custom prompt" {
		t.Errorf("got %q", got)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("   \n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadPromptFile(empty); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("empty file: %v", err)
	}

	if _, err := LoadPromptFile(filepath.Join(dir, "absent.txt")); err == nil {
		t.Error("missing file must fail")
	}
}
