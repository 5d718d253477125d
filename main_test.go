package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/minios-linux/subkit/config"
	"github.com/minios-linux/subkit/lockfile"
	"github.com/minios-linux/subkit/translate"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		width   int
		want    string
	}{
		{
			name:    "clamps below zero",
			percent: -10,
			width:   4,
			want:    colorRed + "░░░░" + colorReset + "   0%",
		},
		{
			name:    "mid range uses yellow",
			percent: 50,
			width:   4,
			want:    colorYellow + "██░░" + colorReset + "  50%",
		},
		{
			name:    "clamps above hundred",
			percent: 120,
			width:   4,
			want:    colorGreen + "████" + colorReset + " 100%",
		},
	}

	for _, tc := range tests {
		if got := progressBar(tc.percent, tc.width); got != tc.want {
			t.Fatalf("%s: progressBar() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFlagFromRegion(t *testing.T) {
	if got := flagFromRegion("us"); got != "🇺🇸" {
		t.Fatalf("flagFromRegion(us) = %q, want %q", got, "🇺🇸")
	}
	if got := flagFromRegion("USA"); got != "" {
		t.Fatalf("flagFromRegion(USA) = %q, want empty", got)
	}
	if got := flagFromRegion("1A"); got != "" {
		t.Fatalf("flagFromRegion(1A) = %q, want empty", got)
	}
}

func TestLangHelpers(t *testing.T) {
	if got := langFlag("zz-BR"); got != "🇧🇷" {
		t.Fatalf("langFlag(zz-BR) = %q, want %q", got, "🇧🇷")
	}
	if got := langFlag("invalid"); got != "" {
		t.Fatalf("langFlag(invalid) = %q, want empty", got)
	}

	langs := []string{"en", "pt-BR", "zh-Hant"}
	if got := langColumnWidth(langs); got != len("zh-Hant") {
		t.Fatalf("langColumnWidth() = %d, want %d", got, len("zh-Hant"))
	}

	cell := langCell("zz-BR", 6)
	if !strings.Contains(cell, "🇧🇷") || !strings.Contains(cell, "zz-BR") {
		t.Fatalf("langCell() = %q, want flag and language code", cell)
	}
}

func TestIntersectLanguages(t *testing.T) {
	available := []string{"en", "fr", "de", "es"}
	filter := []string{" fr ", "es", "it"}
	want := []string{"fr", "es"}

	if got := intersectLanguages(available, filter); !reflect.DeepEqual(got, want) {
		t.Fatalf("intersectLanguages() = %#v, want %#v", got, want)
	}
}

func TestFilterOutLang(t *testing.T) {
	langs := []string{"en", "fr", "en", "de"}
	want := []string{"fr", "de"}

	if got := filterOutLang(langs, "en"); !reflect.DeepEqual(got, want) {
		t.Fatalf("filterOutLang() = %#v, want %#v", got, want)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(filePath, []byte("ok"), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}

	if !fileExists(filePath) {
		t.Fatalf("fileExists(file) = false, want true")
	}
	if fileExists(dir) {
		t.Fatalf("fileExists(directory) = true, want false")
	}
	if fileExists(filepath.Join(dir, "missing.txt")) {
		t.Fatalf("fileExists(missing) = true, want false")
	}
}

func TestParseLangList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "trims and canonicalizes",
			input: " vi, RU ,pt_br",
			want:  []string{"vi", "ru", "pt-BR"},
		},
		{
			name:  "drops empties and duplicates",
			input: "vi,,vi, ,ru",
			want:  []string{"vi", "ru"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tc := range tests {
		if got := parseLangList(tc.input); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: parseLangList(%q) = %#v, want %#v", tc.name, tc.input, got, tc.want)
		}
	}
}

func TestStripANSI(t *testing.T) {
	colored := progressBar(50, 4)
	if got := stripANSI(colored); got != "██░░  50%" {
		t.Fatalf("stripANSI() = %q, want %q", got, "██░░  50%")
	}
	if got := stripANSI("plain"); got != "plain" {
		t.Fatalf("stripANSI(plain) = %q, want unchanged", got)
	}
}

func TestMergeFileConfig(t *testing.T) {
	sf := &config.SubkitFile{
		Provider:     "gemini",
		Model:        "gemini-2.5-flash",
		OutputDir:    "out",
		BatchSize:    25,
		RequestDelay: config.Duration(500 * time.Millisecond),
		Timeout:      config.Duration(90 * time.Second),
		Retry: config.RetryConfig{
			Attempts: 5,
			Delay:    config.Duration(time.Second),
			Ceiling:  config.Duration(10 * time.Second),
		},
	}

	args := translateArgs{provider: "openai", batchSize: 10}
	mergeFileConfig(&args, sf)

	if args.provider != "openai" {
		t.Fatalf("provider = %q, want flag to win", args.provider)
	}
	if args.batchSize != 10 {
		t.Fatalf("batchSize = %d, want flag to win", args.batchSize)
	}
	if args.model != "gemini-2.5-flash" {
		t.Fatalf("model = %q, want value from config", args.model)
	}
	if args.outputDir != "out" {
		t.Fatalf("outputDir = %q, want value from config", args.outputDir)
	}
	if args.requestDelay != 500*time.Millisecond {
		t.Fatalf("requestDelay = %v, want 500ms", args.requestDelay)
	}
	if args.timeout != 90*time.Second {
		t.Fatalf("timeout = %v, want 90s", args.timeout)
	}
	if args.maxRetries != 5 || args.retryDelay != time.Second || args.retryCeiling != 10*time.Second {
		t.Fatalf("retry = %d/%v/%v, want 5/1s/10s", args.maxRetries, args.retryDelay, args.retryCeiling)
	}

	var noConfig translateArgs
	mergeFileConfig(&noConfig, nil)
	if noConfig.provider != "" || noConfig.batchSize != 0 {
		t.Fatalf("mergeFileConfig(nil) changed args: %+v", noConfig)
	}
}

func TestResolveProvider(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if _, err := resolveProvider(translateArgs{provider: "mystery"}, "key"); err == nil {
		t.Fatalf("resolveProvider(mystery) error = nil, want unknown provider")
	}

	prov, err := resolveProvider(translateArgs{
		provider: "OpenAI",
		model:    "gpt-4o-mini",
		baseURL:  "http://localhost:11434/v1",
		proxy:    "http://proxy:3128",
		timeout:  45 * time.Second,
	}, "sk-test")
	if err != nil {
		t.Fatalf("resolveProvider() error: %v", err)
	}
	if prov.ID != translate.ProviderOpenAI {
		t.Fatalf("ID = %q, want %q", prov.ID, translate.ProviderOpenAI)
	}
	if prov.BaseURL != "http://localhost:11434/v1" {
		t.Fatalf("BaseURL = %q, want flag override", prov.BaseURL)
	}
	if prov.APIKey != "sk-test" || prov.Model != "gpt-4o-mini" {
		t.Fatalf("APIKey/Model = %q/%q, want flag values", prov.APIKey, prov.Model)
	}
	if prov.Proxy != "http://proxy:3128" || prov.Timeout != 45*time.Second {
		t.Fatalf("Proxy/Timeout = %q/%v, want flag values", prov.Proxy, prov.Timeout)
	}
}

func TestValidateProvider(t *testing.T) {
	defaults := translate.DefaultProviders()

	prov := defaults[translate.ProviderOpenAI]
	if err := validateProvider(prov); err == nil {
		t.Fatalf("validateProvider(no model) error = nil, want model error")
	}

	prov.Model = "gpt-4o-mini"
	if err := validateProvider(prov); err == nil {
		t.Fatalf("validateProvider(no key) error = nil, want key error")
	}

	prov.APIKey = "sk-test"
	if err := validateProvider(prov); err != nil {
		t.Fatalf("validateProvider() error: %v", err)
	}

	// Custom endpoints may be keyless.
	local := defaults[translate.ProviderOpenAI]
	local.Model = "llama3.1"
	local.BaseURL = "http://localhost:11434/v1"
	if err := validateProvider(local); err != nil {
		t.Fatalf("validateProvider(custom base, no key) error: %v", err)
	}
}

func TestResolvePrompt(t *testing.T) {
	if _, err := resolvePrompt(translateArgs{prompt: "a", promptFile: "b"}, nil); err == nil {
		t.Fatalf("resolvePrompt(both flags) error = nil, want conflict")
	}

	got, err := resolvePrompt(translateArgs{prompt: "translate into {{targetLang}}"}, nil)
	if err != nil || got != "translate into {{targetLang}}" {
		t.Fatalf("resolvePrompt(inline) = %q, %v", got, err)
	}

	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(promptPath, []byte("  custom instructions\n"), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}
	got, err = resolvePrompt(translateArgs{promptFile: promptPath}, nil)
	if err != nil || got != "custom instructions" {
		t.Fatalf("resolvePrompt(file) = %q, %v", got, err)
	}

	sf := &config.SubkitFile{Prompt: "from config"}
	got, err = resolvePrompt(translateArgs{}, sf)
	if err != nil || got != "from config" {
		t.Fatalf("resolvePrompt(config) = %q, %v", got, err)
	}

	got, err = resolvePrompt(translateArgs{}, nil)
	if err != nil || got != "" {
		t.Fatalf("resolvePrompt(defaults) = %q, %v, want empty", got, err)
	}
}

func TestPlanJobs(t *testing.T) {
	dir := t.TempDir()
	oldRoot := rootDir
	rootDir = dir
	defer func() { rootDir = oldRoot }()

	sample := "[Script Info]\nTitle: Test\n\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,Hello\n"
	if err := os.WriteFile(filepath.Join(dir, "movie.ass"), []byte(sample), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}

	lock, err := lockfile.Load(dir)
	if err != nil {
		t.Fatalf("lockfile.Load() error: %v", err)
	}

	sources := []string{"movie.ass"}
	langs := []string{"vi"}

	batches, skipped, err := planJobs(sources, langs, translateArgs{}, lock)
	if err != nil {
		t.Fatalf("planJobs() error: %v", err)
	}
	if skipped != 0 || len(batches) != 1 || len(batches[0].jobs) != 1 {
		t.Fatalf("planJobs() = %d batches, %d skipped, want 1 pending job", len(batches), skipped)
	}
	job := batches[0].jobs[0]
	if filepath.Base(job.Output) != "movie.vi.ass" {
		t.Fatalf("job output = %q, want movie.vi.ass", job.Output)
	}

	// Record the translation and create its output: the pair is now
	// up to date and gets skipped.
	hash, err := lockfile.HashFile(filepath.Join(dir, "movie.ass"))
	if err != nil {
		t.Fatalf("lockfile.HashFile() error: %v", err)
	}
	lock.Update("movie.ass", "vi", hash)
	if err := os.WriteFile(job.Output, []byte(sample), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}

	batches, skipped, err = planJobs(sources, langs, translateArgs{}, lock)
	if err != nil {
		t.Fatalf("planJobs() error: %v", err)
	}
	if skipped != 1 || len(batches[0].jobs) != 0 {
		t.Fatalf("planJobs() skipped = %d, jobs = %d, want skip", skipped, len(batches[0].jobs))
	}

	// --retranslate overrides the lock.
	batches, skipped, err = planJobs(sources, langs, translateArgs{retranslate: true}, lock)
	if err != nil {
		t.Fatalf("planJobs() error: %v", err)
	}
	if skipped != 0 || len(batches[0].jobs) != 1 {
		t.Fatalf("planJobs(retranslate) skipped = %d, jobs = %d, want pending job", skipped, len(batches[0].jobs))
	}

	// A source edit invalidates the recorded hash.
	if err := os.WriteFile(filepath.Join(dir, "movie.ass"), []byte(sample+"Dialogue: 0,0:00:03.00,0:00:04.00,Default,,0,0,0,,More\n"), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}
	batches, skipped, err = planJobs(sources, langs, translateArgs{}, lock)
	if err != nil {
		t.Fatalf("planJobs() error: %v", err)
	}
	if skipped != 0 || len(batches[0].jobs) != 1 {
		t.Fatalf("planJobs(changed source) skipped = %d, jobs = %d, want pending job", skipped, len(batches[0].jobs))
	}
}
