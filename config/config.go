// Package config implements subtitle project discovery and the
// .subkit.yaml project file.
//
// Discovery walks the project root for .ass files and classifies each as
// a source or as a translated output. A file named base.<lang>.ass whose
// base source exists is an output; everything else is a source. Detected
// output languages become the project's default target set.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SubtitleExt is the subtitle file extension subkit operates on.
const SubtitleExt = ".ass"

// Project holds a discovered subtitle project.
type Project struct {
	// Name is the project name (the root directory base name).
	Name string
	// Root is the absolute project root.
	Root string
	// Sources are source subtitle paths relative to Root, sorted.
	Sources []string
	// Outputs maps a source to its translated files: source -> lang -> path.
	// Paths are relative to Root.
	Outputs map[string]map[string]string
	// Languages is the sorted union of output languages.
	Languages []string
}

// AbsPath resolves a project-relative path against the root. Already
// absolute paths (an absolute output_dir) pass through.
func (p *Project) AbsPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, rel)
}

// OutputFor returns the output path (relative to Root) for translating
// source into lang, honoring outputDir when non-empty.
func (p *Project) OutputFor(source, lang, outputDir string) string {
	return OutputPath(source, lang, outputDir)
}

// IsSubtitle reports whether name has the subtitle extension.
func IsSubtitle(name string) bool {
	return strings.EqualFold(filepath.Ext(name), SubtitleExt)
}

// isLangCode reports whether s looks like a language code: a two or three
// letter lowercase base, optionally followed by one or two subtags of 2-8
// alphanumeric characters (vi, pt-BR, zh_Hant).
func isLangCode(s string) bool {
	parts := strings.Split(strings.ReplaceAll(s, "_", "-"), "-")
	if len(parts) == 0 || len(parts) > 3 {
		return false
	}
	base := parts[0]
	if len(base) < 2 || len(base) > 3 {
		return false
	}
	for _, r := range base {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	for _, sub := range parts[1:] {
		if len(sub) < 2 || len(sub) > 8 {
			return false
		}
		for _, r := range sub {
			alpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			digit := r >= '0' && r <= '9'
			if !alpha && !digit {
				return false
			}
		}
	}
	return true
}

// TranslatedLang returns the language code embedded in a translated
// subtitle name ("movie.vi.ass" -> "vi"), or "" when the name has none.
func TranslatedLang(name string) string {
	base := filepath.Base(name)
	if !IsSubtitle(base) {
		return ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	langExt := filepath.Ext(stem)
	if langExt == "" {
		return ""
	}
	lang := strings.TrimPrefix(langExt, ".")
	if !isLangCode(lang) {
		return ""
	}
	return lang
}

// OutputPath returns the translated file path for source and lang:
// movie.ass becomes movie.vi.ass, next to the source or under outputDir
// when non-empty.
func OutputPath(source, lang, outputDir string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := stem + "." + lang + ext
	if outputDir != "" {
		return filepath.Join(outputDir, name)
	}
	return filepath.Join(filepath.Dir(source), name)
}

// Detect walks rootDir and builds the subtitle project. outputDir is the
// configured output directory (may be empty); outputs placed there are
// matched back to their sources by base name.
func Detect(rootDir, outputDir string) (*Project, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	outRel := ""
	if outputDir != "" {
		if filepath.IsAbs(outputDir) {
			if rel, err := filepath.Rel(absRoot, outputDir); err == nil && !strings.HasPrefix(rel, "..") {
				outRel = filepath.Clean(rel)
			}
		} else {
			outRel = filepath.Clean(outputDir)
		}
	}

	var all []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSubtitle(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		all = append(all, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(all)

	exists := make(map[string]bool, len(all))
	for _, f := range all {
		exists[f] = true
	}

	p := &Project{
		Name:    filepath.Base(absRoot),
		Root:    absRoot,
		Outputs: make(map[string]map[string]string),
	}

	// First pass: outputs sitting next to their source.
	type pending struct {
		path, base, lang string
	}
	var unmatched []pending
	output := make(map[string]bool)
	for _, f := range all {
		lang := TranslatedLang(f)
		if lang == "" {
			continue
		}
		base := filepath.Base(f)
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		srcName := strings.TrimSuffix(stem, "."+lang) + ext
		srcPath := filepath.Join(filepath.Dir(f), srcName)
		if exists[srcPath] {
			output[f] = true
			addOutput(p.Outputs, srcPath, lang, f)
			continue
		}
		if outRel != "" && filepath.Dir(f) == outRel {
			unmatched = append(unmatched, pending{path: f, base: srcName, lang: lang})
		}
	}

	for _, f := range all {
		if !output[f] {
			p.Sources = append(p.Sources, f)
		}
	}

	// Second pass: outputs under the configured output directory are
	// matched to a source by base name when the match is unambiguous.
	if len(unmatched) > 0 {
		byBase := make(map[string][]string)
		for _, s := range p.Sources {
			byBase[filepath.Base(s)] = append(byBase[filepath.Base(s)], s)
		}
		for _, u := range unmatched {
			if srcs := byBase[u.base]; len(srcs) == 1 {
				output[u.path] = true
				addOutput(p.Outputs, srcs[0], u.lang, u.path)
			}
		}
		p.Sources = p.Sources[:0]
		for _, f := range all {
			if !output[f] {
				p.Sources = append(p.Sources, f)
			}
		}
	}

	// Drop output entries whose base was itself classified as an output
	// (chained names like movie.vi.ru.ass).
	srcSet := make(map[string]bool, len(p.Sources))
	for _, s := range p.Sources {
		srcSet[s] = true
	}
	for src := range p.Outputs {
		if !srcSet[src] {
			delete(p.Outputs, src)
		}
	}

	langSet := make(map[string]bool)
	for _, langs := range p.Outputs {
		for l := range langs {
			langSet[l] = true
		}
	}
	for l := range langSet {
		p.Languages = append(p.Languages, l)
	}
	sort.Strings(p.Languages)

	return p, nil
}

func addOutput(outputs map[string]map[string]string, source, lang, path string) {
	if outputs[source] == nil {
		outputs[source] = make(map[string]string)
	}
	outputs[source][lang] = path
}
