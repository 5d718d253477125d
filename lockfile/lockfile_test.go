package lockfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	h1 := Hash([]byte("hello world"))
	h2 := Hash([]byte("hello world"))
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	h3 := Hash([]byte("different"))
	if h1 == h3 {
		t.Errorf("Hash collision: %s == %s", h1, h3)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.ass")
	if err := os.WriteFile(path, []byte("[Events]\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if want := Hash([]byte("[Events]\n")); got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}

	if _, err := HashFile(filepath.Join(dir, "missing.ass")); err == nil {
		t.Error("HashFile should fail for a missing file")
	}
}

func TestSourceKey(t *testing.T) {
	got := SourceKey(filepath.Join("season1", "ep01.ass"))
	if got != "season1/ep01.ass" {
		t.Errorf("SourceKey = %q, want season1/ep01.ass", got)
	}
}

func TestLoadNonExistent(t *testing.T) {
	lf, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Checksums) != 0 {
		t.Errorf("Checksums not empty: %v", lf.Checksums)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	lf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lf.Update("ep01.ass", "vi", Hash([]byte("a")))
	lf.Update("ep01.ass", "ru", Hash([]byte("a")))
	lf.Update("ep02.ass", "vi", Hash([]byte("b")))

	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Verify file exists
	path := filepath.Join(dir, LockFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Lock file not created at %s", path)
	}

	// Reload and verify
	lf2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}

	sources, entries := lf2.Stats()
	if sources != 2 {
		t.Errorf("sources = %d, want 2", sources)
	}
	if entries != 3 {
		t.Errorf("entries = %d, want 3", entries)
	}
}

func TestIsChanged(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	h := Hash([]byte("dialogue"))

	// New source is always changed
	if !lf.IsChanged("ep01.ass", "vi", h) {
		t.Error("new source should be changed")
	}

	// After update, same hash is not changed
	lf.Update("ep01.ass", "vi", h)
	if lf.IsChanged("ep01.ass", "vi", h) {
		t.Error("unchanged source should not be changed")
	}

	// Modified content is changed
	if !lf.IsChanged("ep01.ass", "vi", Hash([]byte("edited dialogue"))) {
		t.Error("modified source should be changed")
	}

	// Another language is changed until recorded
	if !lf.IsChanged("ep01.ass", "ru", h) {
		t.Error("unrecorded language should be changed")
	}
}

func TestLanguages(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("ep01.ass", "vi", "h1")
	lf.Update("ep01.ass", "de", "h2")
	lf.Update("ep01.ass", "ru", "h3")

	langs := lf.Languages("ep01.ass")
	expected := []string{"de", "ru", "vi"}
	if len(langs) != len(expected) {
		t.Fatalf("languages len = %d, want %d", len(langs), len(expected))
	}
	for i, want := range expected {
		if langs[i] != want {
			t.Errorf("languages[%d] = %q, want %q", i, langs[i], want)
		}
	}

	if got := lf.Languages("missing.ass"); len(got) != 0 {
		t.Errorf("Languages(missing) = %v, want empty", got)
	}
}

func TestClean(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("ep01.ass", "vi", "h")
	lf.Update("ep01.ass", "ru", "h")
	lf.Update("ep01.ass", "de", "h")

	// Only vi and ru remain in the current target set
	lf.Clean("ep01.ass", []string{"vi", "ru"})

	if lf.IsChanged("ep01.ass", "vi", "h") {
		t.Error("vi should still be tracked")
	}
	if !lf.IsChanged("ep01.ass", "de", "h") {
		t.Error("de should be removed by Clean")
	}
}

func TestCleanSources(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("ep01.ass", "vi", "h")
	lf.Update("deleted.ass", "vi", "h")

	lf.CleanSources([]string{"ep01.ass"})

	sources, _ := lf.Stats()
	if sources != 1 {
		t.Errorf("sources after CleanSources = %d, want 1", sources)
	}
	if !lf.IsChanged("deleted.ass", "vi", "h") {
		t.Error("deleted.ass should be removed")
	}
}

func TestRemoveSource(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("ep01.ass", "vi", "h")
	lf.RemoveSource("ep01.ass")

	sources, _ := lf.Stats()
	if sources != 0 {
		t.Errorf("sources after RemoveSource = %d, want 0", sources)
	}
}

func TestSources(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("ep02.ass", "vi", "h")
	lf.Update("ep01.ass", "vi", "h")
	lf.Update("extras/bonus.ass", "vi", "h")

	sources := lf.Sources()
	expected := []string{"ep01.ass", "ep02.ass", "extras/bonus.ass"}
	if len(sources) != len(expected) {
		t.Fatalf("sources len = %d, want %d", len(sources), len(expected))
	}
	for i, want := range expected {
		if sources[i] != want {
			t.Errorf("sources[%d] = %q, want %q", i, sources[i], want)
		}
	}
}

func TestSummary(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	if lf.Summary() != "empty" {
		t.Errorf("empty summary = %q, want %q", lf.Summary(), "empty")
	}

	lf.Update("ep01.ass", "vi", "h")
	lf.Update("ep02.ass", "vi", "h")
	s := lf.Summary()
	if s == "empty" {
		t.Error("summary should not be empty after updates")
	}
}

func TestConcurrentAccess(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			source := "ep01.ass"
			lang := "l" + string(rune('0'+n))
			lf.Update(source, lang, "h")
			lf.IsChanged(source, lang, "h")
			lf.Stats()
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	_, entries := lf.Stats()
	if entries != 10 {
		t.Errorf("entries after concurrent writes = %d, want 10", entries)
	}
}
