// Package lockfile implements subkit.lock — a lock file that records the
// MD5 checksum of each source subtitle file per target language. This
// enables incremental runs: a source whose content is unchanged since its
// last successful translation into a language is skipped, saving tokens
// and time.
//
// The lock file is stored in the project root as subkit.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "subkit.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the subkit.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // source -> lang -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksums
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of data.
func Hash(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}

// HashFile computes the MD5 hex digest of a file's content.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return Hash(data), nil
}

// SourceKey normalizes a source path for use as a lock file key.
func SourceKey(path string) string {
	return filepath.ToSlash(path)
}

// IsChanged reports whether a source file needs translating into lang:
// true when the source was never translated into lang or its content
// hash differs from the recorded one.
func (lf *LockFile) IsChanged(source, lang, hash string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	langs, ok := lf.Checksums[source]
	if !ok {
		return true
	}
	oldHash, ok := langs[lang]
	if !ok {
		return true
	}
	return oldHash != hash
}

// Update records the source content hash after a successful translation
// into lang.
func (lf *LockFile) Update(source, lang, hash string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[source] == nil {
		lf.Checksums[source] = make(map[string]string)
	}
	lf.Checksums[source][lang] = hash
}

// Languages returns the sorted languages recorded for a source.
func (lf *LockFile) Languages(source string) []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	langs := make([]string, 0, len(lf.Checksums[source]))
	for l := range lf.Checksums[source] {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Clean removes recorded languages for a source that are no longer in the
// current target set. This prevents stale entries from accumulating.
func (lf *LockFile) Clean(source string, currentLangs []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[source]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentLangs))
	for _, l := range currentLangs {
		valid[l] = true
	}

	for l := range existing {
		if !valid[l] {
			delete(existing, l)
		}
	}
}

// CleanSources removes sources that are no longer part of the project.
func (lf *LockFile) CleanSources(currentSources []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(currentSources))
	for _, s := range currentSources {
		valid[s] = true
	}

	for s := range lf.Checksums {
		if !valid[s] {
			delete(lf.Checksums, s)
		}
	}
}

// RemoveSource removes all recorded checksums for a source.
func (lf *LockFile) RemoveSource(source string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, source)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of sources and total language entries in the
// lock file.
func (lf *LockFile) Stats() (sources, entries int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sources = len(lf.Checksums)
	for _, m := range lf.Checksums {
		entries += len(m)
	}
	return
}

// Sources returns the sorted list of recorded source keys.
func (lf *LockFile) Sources() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sources := make([]string, 0, len(lf.Checksums))
	for s := range lf.Checksums {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	sources, entries := lf.Stats()
	if sources == 0 {
		return "empty"
	}

	var parts []string
	for _, s := range lf.Sources() {
		n := len(lf.Checksums[s])
		parts = append(parts, fmt.Sprintf("%s: %d languages", s, n))
	}
	return fmt.Sprintf("%d sources, %d entries (%s)", sources, entries, strings.Join(parts, ", "))
}
