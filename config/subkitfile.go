// Package config — .subkit.yaml configuration file support.
//
// When a .subkit.yaml file exists in the project root, its values become
// the project defaults. Command line flags still win over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/subkit/langmeta"
)

// SubkitFileName is the default config file name.
const SubkitFileName = ".subkit.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Duration wraps time.Duration so YAML values read naturally ("2s", "500ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RetryConfig tunes how failed provider requests are retried.
type RetryConfig struct {
	// Attempts is the maximum number of attempts per request.
	Attempts int `yaml:"attempts,omitempty"`
	// Delay is the base backoff delay; attempt k waits (k+1)*delay.
	Delay Duration `yaml:"delay,omitempty"`
	// Ceiling caps the backoff delay.
	Ceiling Duration `yaml:"ceiling,omitempty"`
}

// SubkitFile is the top-level .subkit.yaml structure.
type SubkitFile struct {
	// Provider is the translation provider ID ("openai", "gemini").
	Provider string `yaml:"provider,omitempty"`
	// Model overrides the provider's default model.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `yaml:"base_url,omitempty"`
	// Languages is the default target language list.
	Languages []string `yaml:"languages,omitempty"`
	// SourceLang is the language the subtitles are written in. It is
	// excluded from the target set.
	SourceLang string `yaml:"source_lang,omitempty"`
	// OutputDir places translated files in a directory instead of next to
	// their sources. Relative to the project root.
	OutputDir string `yaml:"output_dir,omitempty"`
	// BatchSize is the number of dialogue lines sent per request.
	BatchSize int `yaml:"batch_size,omitempty"`
	// Prompt is an inline system prompt override.
	Prompt string `yaml:"prompt,omitempty"`
	// PromptFile points at a file holding the system prompt.
	PromptFile string `yaml:"prompt_file,omitempty"`
	// RequestDelay pauses between consecutive provider requests.
	RequestDelay Duration `yaml:"request_delay,omitempty"`
	// Timeout bounds a single provider request.
	Timeout Duration `yaml:"timeout,omitempty"`
	// Retry tunes the retry policy for failed requests.
	Retry RetryConfig `yaml:"retry,omitempty"`
	// Sources restricts translation to these files (relative to the
	// project root). Empty means every discovered source.
	Sources []string `yaml:"sources,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadSubkitFile loads and validates .subkit.yaml from the given directory.
// Returns nil if no .subkit.yaml exists.
func LoadSubkitFile(rootDir string) (*SubkitFile, error) {
	path := filepath.Join(rootDir, SubkitFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var sf SubkitFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if sf.BatchSize < 0 {
		return nil, fmt.Errorf("%s: batch_size must not be negative", path)
	}
	if sf.Retry.Attempts < 0 {
		return nil, fmt.Errorf("%s: retry.attempts must not be negative", path)
	}
	for _, d := range []Duration{sf.RequestDelay, sf.Timeout, sf.Retry.Delay, sf.Retry.Ceiling} {
		if d < 0 {
			return nil, fmt.Errorf("%s: durations must not be negative", path)
		}
	}
	if sf.Prompt != "" && sf.PromptFile != "" {
		return nil, fmt.Errorf("%s: prompt and prompt_file are mutually exclusive", path)
	}

	for i, lang := range sf.Languages {
		c := langmeta.Canonical(lang)
		if c == "" {
			return nil, fmt.Errorf("%s: languages[%d] is empty", path, i)
		}
		sf.Languages[i] = c
	}
	sf.SourceLang = langmeta.Canonical(sf.SourceLang)

	return &sf, nil
}
