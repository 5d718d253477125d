// Package translate implements batch subtitle translation through LLM chat
// APIs.
//
// The pipeline for one document: collect dialogue events, extract their
// text payloads, group them into bounded batches, send each batch to the
// provider with a patient retry policy, recover an ordered translation list
// from the raw model reply, and put each translation back into its original
// event line. Everything runs strictly sequentially so progress stays
// monotonic and a single HTTP client serves the whole job.
//
// The engine never writes to a terminal. Milestones, warnings and errors
// flow through the OnStatus callback and completion through OnProgress;
// both must return quickly because the pipeline calls them inline.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minios-linux/subkit/assfile"
	"github.com/minios-linux/subkit/langmeta"
)

// DefaultBatchSize is how many dialogue texts go into one API request when
// Options.BatchSize is unset.
const DefaultBatchSize = 89

// MissingText marks a dialogue slot whose translation never arrived. It is
// visibly not a translation so a viewer or a grep finds the gaps, and the
// reconciler can never produce it itself (ALL-CAPS tokens are denylisted).
const MissingText = "[UNTRANSLATED]"

// maxDiagnosticLen caps raw model output quoted in status messages.
const maxDiagnosticLen = 500

// ---------------------------------------------------------------------------
// Status events
// ---------------------------------------------------------------------------

// Level classifies a status event.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// ---------------------------------------------------------------------------
// Translation options
// ---------------------------------------------------------------------------

// Options controls a translation job. The value is treated as immutable by
// the engine; every unset knob falls back to a working default.
type Options struct {
	// Provider is the AI provider configuration.
	Provider Provider
	// Language is the target language code (e.g., "vi", "ru").
	Language string
	// LanguageName is the human-readable name (e.g., "Vietnamese").
	// Resolved from Language via langmeta when empty.
	LanguageName string
	// Prompt overrides the built-in instruction template. The text may use
	// the {{targetLang}} placeholder.
	Prompt string
	// BatchSize is how many dialogue texts to translate per API call.
	BatchSize int
	// Retry is the transport retry policy.
	Retry RetryPolicy
	// Heuristics tunes the response reconciler.
	Heuristics Heuristics
	// RequestDelay is an optional pause between batch requests.
	RequestDelay time.Duration
	// Timeout is the per-request timeout (overrides provider timeout if set).
	Timeout time.Duration
	// Verbose enables per-batch detail on the status stream.
	Verbose bool
	// OnProgress receives the document's completion percentage, 0-100,
	// monotonic within one document. Must not block.
	OnProgress func(percent int)
	// OnStatus receives job milestones, warnings and per-file errors.
	// Must not block.
	OnStatus func(level Level, message string)
}

func (o *Options) status(level Level, format string, args ...any) {
	if o.OnStatus != nil {
		o.OnStatus(level, fmt.Sprintf(format, args...))
	}
}

func (o *Options) progress(done, total int) {
	if o.OnProgress == nil || total <= 0 {
		return
	}
	o.OnProgress(done * 100 / total)
}

// report adapts the status callback for the transport.
func (o *Options) report() func(Level, string) {
	return func(level Level, message string) {
		if o.OnStatus != nil {
			o.OnStatus(level, message)
		}
	}
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if o.Provider.Timeout > 0 {
		return o.Provider.Timeout
	}
	return 120 * time.Second
}

func (o *Options) effectiveHeuristics() Heuristics {
	h := o.Heuristics
	if h.Language == "" {
		h.Language = o.Language
	}
	return h
}

// languageName resolves the display name used in prompts.
func (o *Options) languageName() string {
	if o.LanguageName != "" {
		return o.LanguageName
	}
	return langmeta.Name(o.Language)
}

// ---------------------------------------------------------------------------
// Multi-file jobs
// ---------------------------------------------------------------------------

// FileJob is one source document and the path its translation goes to.
type FileJob struct {
	// Input is the source subtitle path.
	Input string
	// Output is the destination path for the translated copy.
	Output string
}

// Summary is the outcome of a multi-file job.
type Summary struct {
	// Completed counts files that were translated and written.
	Completed int
	// Failed counts files that were skipped after an error.
	Failed int
	// Errors maps each failed input path to its error.
	Errors map[string]error
}

// TranslateFiles translates documents strictly one at a time. A failing
// file is recorded in the summary and the remaining files still run; only
// context cancellation stops the loop early. The returned error is non-nil
// when any file failed.
func TranslateFiles(ctx context.Context, jobs []FileJob, opts Options) (Summary, error) {
	sum := Summary{Errors: make(map[string]error)}

	shape, err := shapeFor(opts.Provider.ID)
	if err != nil {
		return sum, err
	}
	tr := newTransport(makeHTTPClient(opts.Provider.Proxy, opts.effectiveTimeout()), opts.Retry, opts.report())

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		opts.status(LevelInfo, "Translating %s (%d/%d)...", job.Input, i+1, len(jobs))

		if err := translateFile(ctx, tr, shape, job, opts); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			opts.status(LevelError, "%s: %v", job.Input, err)
			sum.Failed++
			sum.Errors[job.Input] = err
			continue
		}
		sum.Completed++
	}

	if sum.Failed > 0 {
		return sum, fmt.Errorf("%d of %d file(s) failed", sum.Failed, len(jobs))
	}
	return sum, nil
}

func translateFile(ctx context.Context, tr *transport, shape requestShape, job FileJob, opts Options) error {
	doc, err := assfile.ParseFile(job.Input)
	if err != nil {
		return err
	}
	if err := translateDocument(ctx, tr, shape, doc, opts); err != nil {
		return err
	}
	if err := doc.WriteFile(job.Output); err != nil {
		return err
	}
	_, dialogues := doc.Stats()
	opts.status(LevelInfo, "Saved %s (%d dialogue lines)", job.Output, dialogues)
	return nil
}

// ---------------------------------------------------------------------------
// Single-document pipeline
// ---------------------------------------------------------------------------

// TranslateDocument translates doc's dialogue text in place. Non-dialogue
// lines and the nine metadata fields of every event are left untouched.
func TranslateDocument(ctx context.Context, doc *assfile.Document, opts Options) error {
	shape, err := shapeFor(opts.Provider.ID)
	if err != nil {
		return err
	}
	tr := newTransport(makeHTTPClient(opts.Provider.Proxy, opts.effectiveTimeout()), opts.Retry, opts.report())
	return translateDocument(ctx, tr, shape, doc, opts)
}

func translateDocument(ctx context.Context, tr *transport, shape requestShape, doc *assfile.Document, opts Options) error {
	events := doc.Dialogues()
	if len(events) == 0 {
		opts.status(LevelInfo, "No dialogue lines, nothing to translate")
		return nil
	}

	texts := make([]string, len(events))
	for i, ev := range events {
		texts[i] = assfile.EncodeBreaks(assfile.Text(ev.Raw))
	}

	instruction := opts.resolvedPrompt()
	batches := splitBatches(texts, opts.effectiveBatchSize())
	heuristics := opts.effectiveHeuristics()

	opts.progress(0, len(texts))

	done := 0
	for i, batch := range batches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if opts.Verbose {
			opts.status(LevelInfo, "Batch %d/%d (%d lines)", i+1, len(batches), len(batch))
		}

		translated, err := translateBatch(ctx, tr, shape, instruction, batch, heuristics, opts)
		if err != nil {
			return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		for j, text := range translated {
			ev := events[done+j]
			doc.Lines[ev.Index] = assfile.WithText(ev.Raw, assfile.DecodeBreaks(text))
		}

		done += len(batch)
		opts.progress(done, len(texts))

		if i < len(batches)-1 && opts.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.RequestDelay):
			}
		}
	}

	opts.status(LevelInfo, "Translated %d dialogue lines in %d batch(es)", len(texts), len(batches))
	return nil
}

// translateBatch sends one batch and always returns exactly len(batch)
// strings on success: a count mismatch from the reconciler is padded with
// MissingText or truncated, with a warning, so reinjection stays 1:1.
func translateBatch(ctx context.Context, tr *transport, shape requestShape, instruction string, batch []string, heuristics Heuristics, opts Options) ([]string, error) {
	prompt, err := buildPrompt(instruction, batch)
	if err != nil {
		return nil, err
	}
	endpoint, headers, body, err := shape.buildRequest(opts.Provider, prompt)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if opts.Verbose {
		opts.status(LevelInfo, "POST %s (%d bytes)", redactKey(endpoint), len(body))
	}

	respBody, err := tr.send(ctx, endpoint, headers, body)
	if err != nil {
		return nil, err
	}

	reply, err := shape.responseText(respBody)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply) == "" {
		return nil, ErrEmptyReply
	}

	translations, strategy := Reconcile(reply, len(batch), heuristics)
	switch {
	case len(translations) == 0:
		opts.status(LevelWarning, "No translations recovered from reply: %s", snippet(reply, maxDiagnosticLen))
	case strategy != strategies[0].name:
		opts.status(LevelInfo, "Recovered %d translation(s) via %s", len(translations), strategy)
	}

	switch {
	case len(translations) < len(batch):
		opts.status(LevelWarning, "Expected %d translations, got %d; padding the rest", len(batch), len(translations))
		for len(translations) < len(batch) {
			translations = append(translations, MissingText)
		}
	case len(translations) > len(batch):
		opts.status(LevelWarning, "Expected %d translations, got %d; dropping extras", len(batch), len(translations))
		translations = translations[:len(batch)]
	}
	return translations, nil
}

// splitBatches partitions texts into contiguous chunks of at most size
// elements, preserving order.
func splitBatches(texts []string, size int) [][]string {
	if len(texts) == 0 {
		return nil
	}
	if size <= 0 || size >= len(texts) {
		return [][]string{texts}
	}
	var batches [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}

// snippet flattens s onto one line and truncates it for diagnostics.
func snippet(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
