// Package langmeta resolves display metadata for BCP 47 language codes:
// English names for model prompts, native names and emoji flags for CLI UI.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	Code   string // canonical code, e.g. "pt-BR"
	Name   string // English name, e.g. "Brazilian Portuguese"
	Native string // self name, e.g. "português"
	Flag   string // emoji flag, empty when no country applies
}

var englishNames = display.Tags(language.English)

// regionOverrides pins the flag country for bare codes where
// likely-subtag inference picks a different country than the one
// conventionally shown for the language.
var regionOverrides = map[string]string{
	"ar": "SA",
	"en": "US",
	"pt": "PT",
	"sw": "TZ",
	"ur": "PK",
}

// Canonical normalizes a language code: trims space, converts
// underscore separators, lowercases the language subtag and uppercases
// a two-letter region subtag (pt_br -> pt-BR). It does not validate.
func Canonical(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) == 2 {
			parts[i] = strings.ToUpper(parts[i])
		}
	}
	return strings.Join(parts, "-")
}

func parse(lang string) (language.Tag, bool) {
	c := Canonical(lang)
	if c == "" {
		return language.Und, false
	}
	tag, err := language.Parse(c)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// Valid reports whether lang parses as a recognized language code.
func Valid(lang string) bool {
	_, ok := parse(lang)
	return ok
}

// Name returns the English display name for lang ("vi" -> "Vietnamese").
// Unrecognized codes pass through unchanged so prompts still carry
// whatever the user asked for.
func Name(lang string) string {
	tag, ok := parse(lang)
	if !ok {
		return strings.TrimSpace(lang)
	}
	if name := englishNames.Name(tag); name != "" {
		return name
	}
	return strings.TrimSpace(lang)
}

// Native returns the self name for lang ("vi" -> "Tiếng Việt").
func Native(lang string) string {
	tag, ok := parse(lang)
	if !ok {
		return strings.TrimSpace(lang)
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return strings.TrimSpace(lang)
}

// Region returns the ISO 3166-1 country for lang. An explicit region
// subtag wins; bare codes fall back to the likely country ("vi" -> "VN").
// Empty when the code is unrecognized or no single country applies.
func Region(lang string) string {
	tag, ok := parse(lang)
	if !ok {
		return ""
	}
	if _, _, reg := tag.Raw(); reg.IsCountry() {
		return reg.String()
	}
	if base, conf := tag.Base(); conf != language.No {
		if r, ok := regionOverrides[base.String()]; ok {
			return r
		}
	}
	if reg, conf := tag.Region(); conf != language.No && reg.IsCountry() {
		return reg.String()
	}
	return ""
}

// Flag returns the emoji flag for lang's country, or "" when none applies.
func Flag(lang string) string {
	region := Region(lang)
	if len(region) != 2 {
		return ""
	}
	r0, r1 := rune(region[0]), rune(region[1])
	if r0 < 'A' || r0 > 'Z' || r1 < 'A' || r1 > 'Z' {
		return ""
	}
	return string([]rune{0x1F1E6 + r0 - 'A', 0x1F1E6 + r1 - 'A'})
}

// Resolve returns best-effort metadata for lang, tolerating variants
// like pt_BR and pt-BR.
func Resolve(lang string) Meta {
	code := Canonical(lang)
	if code == "" {
		code = strings.TrimSpace(lang)
	}
	return Meta{
		Code:   code,
		Name:   Name(lang),
		Native: Native(lang),
		Flag:   Flag(lang),
	}
}
