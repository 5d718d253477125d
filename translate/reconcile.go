package translate

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Response reconciliation
// ---------------------------------------------------------------------------
//
// The model routinely violates its own instructed output contract: it wraps
// the JSON array in prose, returns an array of objects instead of strings,
// adds Markdown fencing, or emits freeform lines. Reconcile therefore runs
// an ordered cascade of extraction strategies, from most structured to
// least trustworthy, and the first non-empty result wins. It never fails;
// an empty result is a data state the caller resolves by padding.

// Heuristics tunes the reconciler's fuzzier strategies. The zero value
// selects the defaults. The denylist and thresholds are hand-tuned, not
// load-bearing; deployments may replace them wholesale.
type Heuristics struct {
	// Language is the target language code. Object-array replies often key
	// translations by it, so it is always the first recognized key.
	Language string
	// TranslationKeys are object fields recognized as carrying translated
	// text, tried in order after Language.
	TranslationKeys []string
	// Denylist rejects quoted fragments that merely echo prompt or schema
	// vocabulary. Fragments are compared whole, case-insensitively; for
	// line harvesting the words are matched per token.
	Denylist []string
	// MinFragmentLen and MaxFragmentLen bound accepted quoted fragments,
	// both exclusive, in runes.
	MinFragmentLen int
	MaxFragmentLen int
	// MinLineLen and MaxLineLen bound accepted harvested lines, both
	// exclusive, in runes.
	MinLineLen int
	MaxLineLen int
}

func defaultTranslationKeys() []string {
	return []string{"translation", "translated", "text", "target", "value"}
}

func defaultDenylist() []string {
	return []string{
		"json", "array", "input", "output", "error",
		"translate", "translated", "translation", "translations",
		"string", "strings", "example", "note",
	}
}

func (h Heuristics) withDefaults() Heuristics {
	if h.TranslationKeys == nil {
		h.TranslationKeys = defaultTranslationKeys()
	}
	if h.Denylist == nil {
		h.Denylist = defaultDenylist()
	}
	if h.MinFragmentLen <= 0 {
		h.MinFragmentLen = 3
	}
	if h.MaxFragmentLen <= 0 {
		h.MaxFragmentLen = 500
	}
	if h.MinLineLen <= 0 {
		h.MinLineLen = 5
	}
	if h.MaxLineLen <= 0 {
		h.MaxLineLen = 200
	}
	return h
}

// keyOrder returns the recognized translation-field keys, target language
// code first.
func (h Heuristics) keyOrder() []string {
	if h.Language == "" {
		return h.TranslationKeys
	}
	return append([]string{h.Language}, h.TranslationKeys...)
}

// A strategy recovers an ordered translation list from raw model output,
// returning nil when it finds nothing plausible.
type strategy struct {
	name string
	run  func(raw string, want int, h Heuristics) []string
}

// strategies are tried in fixed order; an earlier success short-circuits
// the rest.
var strategies = []strategy{
	{name: "string-array", run: matchStringArray},
	{name: "object-array", run: matchObjectArray},
	{name: "quoted-harvest", run: harvestQuoted},
	{name: "whole-json", run: parseWholeArray},
	{name: "line-harvest", run: harvestLines},
}

// Reconcile recovers an ordered list of translations from a raw model
// reply, best-effort length want. The second return is the name of the
// winning strategy for status reporting; both returns are empty when
// nothing usable was found.
func Reconcile(raw string, want int, h Heuristics) ([]string, string) {
	if want <= 0 || strings.TrimSpace(raw) == "" {
		return nil, ""
	}
	h = h.withDefaults()
	for _, s := range strategies {
		if got := s.run(raw, want, h); len(got) > 0 {
			return got, s.name
		}
	}
	return nil, ""
}

// ---------------------------------------------------------------------------
// Strategy 1: first JSON string array embedded anywhere in the reply
// ---------------------------------------------------------------------------

// stringArrayPattern locates a JSON array of double-quoted strings without
// parsing the surrounding document. Escaped characters are allowed inside
// the quotes; raw newlines are not, matching the JSON grammar.
var stringArrayPattern = regexp.MustCompile(`\[\s*"(?:[^"\\]|\\.)*"\s*(?:,\s*"(?:[^"\\]|\\.)*"\s*)*\]`)

func matchStringArray(raw string, _ int, _ Heuristics) []string {
	candidate := stringArrayPattern.FindString(raw)
	if candidate == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil
	}
	return out
}

// ---------------------------------------------------------------------------
// Strategy 2: JSON array of objects, projecting a recognized field
// ---------------------------------------------------------------------------

var objectArrayPattern = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)

func matchObjectArray(raw string, _ int, h Heuristics) []string {
	candidate := objectArrayPattern.FindString(raw)
	if candidate == "" {
		return nil
	}
	var objects []map[string]any
	if err := json.Unmarshal([]byte(candidate), &objects); err != nil {
		return nil
	}
	keys := h.keyOrder()
	out := make([]string, 0, len(objects))
	for _, obj := range objects {
		value := ""
		for _, key := range keys {
			if s, ok := obj[key].(string); ok && s != "" {
				value = s
				break
			}
		}
		if value == "" {
			// An object without a recognized key means this is not the
			// translation shape; do not guess.
			return nil
		}
		out = append(out, value)
	}
	return out
}

// ---------------------------------------------------------------------------
// Strategy 3: harvest of plausible double-quoted fragments
// ---------------------------------------------------------------------------

var quotedFragmentPattern = regexp.MustCompile(`"(?:[^"\\\n]|\\.)*"`)

// harvestQuoted collects every quoted fragment that survives the denylist
// and the length bounds. The list is trusted only while its size stays
// within [1, 2*want]; above want it is cut down to the first want entries.
func harvestQuoted(raw string, want int, h Heuristics) []string {
	var out []string
	for _, quoted := range quotedFragmentPattern.FindAllString(raw, -1) {
		var fragment string
		if err := json.Unmarshal([]byte(quoted), &fragment); err != nil {
			// Invalid escape sequence; keep the inner text as written.
			fragment = strings.Trim(quoted, `"`)
		}
		if h.rejectFragment(fragment) {
			continue
		}
		out = append(out, fragment)
	}
	if len(out) == 0 || len(out) > 2*want {
		return nil
	}
	if len(out) > want {
		out = out[:want]
	}
	return out
}

func (h Heuristics) rejectFragment(s string) bool {
	trimmed := strings.TrimSpace(s)
	n := utf8.RuneCountInString(trimmed)
	if n <= h.MinFragmentLen || n >= h.MaxFragmentLen {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, word := range h.Denylist {
		if lower == word {
			return true
		}
	}
	return looksLikeURL(trimmed) || looksLikeEmail(trimmed) ||
		isNumeric(trimmed) || isAllCapsToken(trimmed)
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(strings.ToLower(s), "www.")
}

func looksLikeEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && strings.Contains(s[at:], ".") && !strings.ContainsAny(s, " \t")
}

// isNumeric reports whether s is digits plus numeric punctuation only,
// e.g. timestamps or counters echoed from the prompt.
func isNumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case strings.ContainsRune(" .,:%/+-", r):
		default:
			return false
		}
	}
	return true
}

// isAllCapsToken reports whether s is a single SCREAMING_CASE token, the
// shape of constants and markers echoed from instructions.
func isAllCapsToken(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return hasLetter
}

// ---------------------------------------------------------------------------
// Strategy 4: the whole reply is the array, possibly fenced
// ---------------------------------------------------------------------------

var markdownFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func parseWholeArray(raw string, _ int, _ Heuristics) []string {
	content := strings.TrimSpace(raw)
	if m := markdownFence.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}
	var out []string
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil
	}
	return out
}

// ---------------------------------------------------------------------------
// Strategy 5: freeform line harvest
// ---------------------------------------------------------------------------

var listMarkerPattern = regexp.MustCompile(`^\d{1,3}[.)]\s+`)

const lineTrimCutset = "\"'`[](){}*-• \t"

// harvestLines keeps non-structural prose lines as a last resort. Excess
// here is untrusted, so unlike the quoted harvest the count must not
// exceed want.
func harvestLines(raw string, want int, h Heuristics) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		n := utf8.RuneCountInString(line)
		if n <= h.MinLineLen || n >= h.MaxLineLen {
			continue
		}
		if strings.HasPrefix(line, "[") || strings.HasPrefix(line, "{") ||
			strings.HasPrefix(line, `"`) || strings.HasPrefix(line, "```") ||
			strings.HasPrefix(line, "#") {
			continue
		}
		if h.containsDenyWord(line) {
			continue
		}
		line = listMarkerPattern.ReplaceAllString(line, "")
		line = strings.Trim(line, lineTrimCutset)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 || len(out) > want {
		return nil
	}
	return out
}

func (h Heuristics) containsDenyWord(line string) bool {
	for _, token := range strings.Fields(strings.ToLower(line)) {
		token = strings.Trim(token, ".,:;!?\"'()[]{}")
		for _, word := range h.Denylist {
			if token == word {
				return true
			}
		}
	}
	return false
}
