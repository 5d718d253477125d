package translate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// Prompt construction
// ---------------------------------------------------------------------------

// DefaultPrompt is the built-in translation instruction. {{targetLang}} is
// replaced with the target language name at run time; the JSON-encoded
// batch is appended below it as a single message.
const DefaultPrompt = `You are a professional subtitle translator. You are translating movie and TV subtitle lines into {{targetLang}}.

TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in {{targetLang}}, not word-for-word
- Keep the spoken-dialogue register: contractions, interjections, informal phrasing where the source has them
- Keep each line short enough to read at subtitle speed; do not expand or editorialize
- Keep names, numbers, and onomatopoeia appropriate to {{targetLang}} conventions

TECHNICAL REQUIREMENTS:
- The input below is a JSON array of strings; translate every element
- Return ONLY a JSON array of strings with exactly the same number of elements, in the same order
- Preserve every {\...} styling tag exactly as written, in the position it appears
- Preserve every [br] marker exactly as written; it is a line break, keep it between the words it separates
- Do not merge, split, or reorder elements
- No explanations, no notes, no markdown code fences

Input array:`

// resolvedPrompt returns the instruction text with template variables
// filled in. A custom prompt wins over the built-in template.
func (o *Options) resolvedPrompt() string {
	prompt := o.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return strings.ReplaceAll(prompt, "{{targetLang}}", o.languageName())
}

// buildPrompt composes the single message sent to the model: the
// instruction followed by the batch texts as a JSON array.
func buildPrompt(instruction string, batch []string) (string, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("encoding batch: %w", err)
	}
	return instruction + "\n" + string(payload), nil
}

// LoadPromptFile reads a custom instruction template from path.
func LoadPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return prompt, nil
}
