// subkit — batch AI translator for Advanced SubStation Alpha subtitles.
//
// subkit scans a project for .ass files, sends their dialogue text to an
// LLM chat API in bounded batches and writes translated copies next to
// the sources (movie.ass -> movie.vi.ass). A lock file with content
// hashes keeps repeat runs incremental: only new or changed files are
// translated again.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/minios-linux/subkit/assfile"
	"github.com/minios-linux/subkit/config"
	"github.com/minios-linux/subkit/i18n"
	"github.com/minios-linux/subkit/langmeta"
	"github.com/minios-linux/subkit/lockfile"
	"github.com/minios-linux/subkit/settings"
	"github.com/minios-linux/subkit/translate"
)

// Build metadata, injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

// useColor gates ANSI output: off when NO_COLOR is set or stderr is not
// a terminal.
var useColor = os.Getenv("NO_COLOR") == "" &&
	(isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))

func paint(color, s string) string {
	if !useColor {
		return s
	}
	return color + s + colorReset
}

// logInfo prints an informational message to stderr.
func logInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, paint(colorBlue, "[INFO]")+" "+format+"\n", args...)
}

// logSuccess prints a success message to stderr.
func logSuccess(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, paint(colorGreen, "[OK]")+" "+format+"\n", args...)
}

// logWarning prints a warning message to stderr.
func logWarning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, paint(colorYellow, "[WARN]")+" "+format+"\n", args...)
}

// logError prints an error message to stderr.
func logError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, paint(colorRed, "[ERROR]")+" "+format+"\n", args...)
}

// rootDir is the project root directory, set by the global --root flag.
var rootDir string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "subkit",
		Short: "Batch AI translator for ASS subtitle files",
		Long: `subkit — batch AI translator for Advanced SubStation Alpha subtitles.

Scans the project root for .ass files, sends their dialogue lines to an
LLM chat API in bounded batches and writes translated copies alongside
the sources (movie.ass -> movie.vi.ass). Timing, styling and every
non-dialogue line pass through byte for byte.

Commands:
  status      Show subtitle files and translation coverage
  translate   Translate subtitle files
  auth        Manage provider API keys
  version     Show version information

Providers:
  openai      OpenAI chat completions, or any compatible endpoint
              (Ollama, LM Studio, OpenRouter, ...) via --base-url
  gemini      Google AI (Gemini) generateContent

Typical workflow:
  subkit auth set --provider openai
  subkit translate --provider openai --model gpt-4o-mini --lang vi,ru
  subkit status`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	rootCmd.AddCommand(
		newStatusCmd(),
		newTranslateCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version command
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("subkit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// status command
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var langFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show subtitle files and translation coverage",
		Long: `Show the subtitle files under the project root, their dialogue line
counts and which target languages already have an up-to-date translation.

A translation counts as up to date when its file exists and the source
hash recorded in ` + lockfile.LockFileName + ` still matches the source.`,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus(langFilter)
		},
	}

	cmd.Flags().StringVarP(&langFilter, "lang", "l", "", "Only show these languages (comma-separated)")

	return cmd
}

func runStatus(langFilter string) {
	sf, err := config.LoadSubkitFile(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	outputDir := ""
	if sf != nil {
		outputDir = sf.OutputDir
	}

	proj, err := config.Detect(rootDir, outputDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	lock, err := lockfile.Load(proj.Root)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", paint(colorBlue, i18n.T("Project")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", i18n.T("Name:"), proj.Name)
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", i18n.T("Root:"), proj.Root)
	if sf != nil {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", i18n.T("Config:"), config.SubkitFileName)
		if sf.Provider != "" {
			providerLine := sf.Provider
			if sf.Model != "" {
				providerLine += " / " + sf.Model
			}
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", i18n.T("Provider:"), providerLine)
		}
		if sf.OutputDir != "" {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", i18n.T("Output:"), sf.OutputDir)
		}
	}

	if len(proj.Sources) == 0 {
		fmt.Fprintln(os.Stderr)
		logInfo(i18n.T("No subtitle files found in %s"), proj.Root)
		return
	}

	langs := proj.Languages
	if sf != nil && len(sf.Languages) > 0 {
		langs = sf.Languages
	}
	if sf != nil && sf.SourceLang != "" {
		langs = filterOutLang(langs, sf.SourceLang)
	}
	if langFilter != "" {
		langs = intersectLanguages(langs, parseLangList(langFilter))
	}

	type sourceInfo struct {
		rel       string
		lines     int
		dialogues int
		hash      string
	}
	infos := make([]sourceInfo, 0, len(proj.Sources))
	for _, src := range proj.Sources {
		info := sourceInfo{rel: src, lines: -1, dialogues: -1}
		abs := proj.AbsPath(src)
		if doc, err := assfile.ParseFile(abs); err != nil {
			logWarning("%s: %v", src, err)
		} else {
			info.lines, info.dialogues = doc.Stats()
		}
		if h, err := lockfile.HashFile(abs); err == nil {
			info.hash = h
		}
		infos = append(infos, info)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", paint(colorBlue, i18n.T("Files")))
	header := table.Row{i18n.T("File"), i18n.T("Lines"), i18n.T("Dialogue")}
	for _, lang := range langs {
		header = append(header, lang)
	}
	coverage := make(map[string]int, len(langs))
	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		row := table.Row{info.rel, countCell(info.lines), countCell(info.dialogues)}
		for _, lang := range langs {
			outRel := config.OutputPath(info.rel, lang, outputDir)
			mark := "·"
			if fileExists(proj.AbsPath(outRel)) {
				coverage[lang]++
				if info.hash != "" && !lock.IsChanged(lockfile.SourceKey(info.rel), lang, info.hash) {
					mark = paint(colorGreen, "✓")
				} else {
					mark = paint(colorYellow, "~")
				}
			}
			row = append(row, mark)
		}
		rows = append(rows, row)
	}
	renderTable(os.Stderr, header, rows, len(langs))
	if len(langs) > 0 {
		fmt.Fprintf(os.Stderr, "  %s %s   %s %s   · %s\n",
			paint(colorGreen, "✓"), i18n.T("up to date"),
			paint(colorYellow, "~"), i18n.T("needs update"),
			i18n.T("missing"))
	}

	if len(langs) > 0 {
		fmt.Fprintf(os.Stderr, "\n%s\n", paint(colorBlue, i18n.T("Languages")))
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
		width := langColumnWidth(langs)
		for _, lang := range langs {
			percent := coverage[lang] * 100 / len(infos)
			bar := progressBar(percent, 20)
			if !useColor {
				bar = stripANSI(bar)
			}
			fmt.Fprintf(os.Stderr, "  %s %s %d/%d  %s\n",
				langCell(lang, width), bar, coverage[lang], len(infos), langmeta.Name(lang))
		}
	}

	if sources, entries := lock.Stats(); entries > 0 {
		fmt.Fprintln(os.Stderr)
		logInfo(i18n.T("Lock file tracks %d source(s), %d translation(s)"), sources, entries)
	}
	fmt.Fprintln(os.Stderr)
}

// countCell renders a line count, or "?" for files that failed to parse.
func countCell(n int) interface{} {
	if n < 0 {
		return "?"
	}
	return n
}

func renderTable(w io.Writer, header table.Row, rows []table.Row, langCols int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	configs := []table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	}
	for i := 0; i < langCols; i++ {
		configs = append(configs, table.ColumnConfig{Number: 4 + i, Align: text.AlignCenter})
	}
	tw.SetColumnConfigs(configs)
	tw.SetStyle(table.StyleRounded)
	tw.Render()
}

// ---------------------------------------------------------------------------
// translate command
// ---------------------------------------------------------------------------

type translateArgs struct {
	provider     string
	model        string
	apiKey       string
	baseURL      string
	langs        string
	outputDir    string
	batchSize    int
	retranslate  bool
	prompt       string
	promptFile   string
	requestDelay time.Duration
	timeout      time.Duration
	proxy        string
	maxRetries   int
	retryDelay   time.Duration
	retryCeiling time.Duration
	verbose      bool
	dryRun       bool
	files        []string
}

func newTranslateCmd() *cobra.Command {
	args := translateArgs{}

	cmd := &cobra.Command{
		Use:   "translate [files...]",
		Short: "Translate subtitle files with an LLM provider",
		Long: `Translate the project's subtitle files into one or more target languages.

Without file arguments every detected source is translated (files named
like movie.vi.ass count as outputs, not sources). Translations land next
to their source, or under --output-dir, named <stem>.<lang>.ass.

Files whose content hash in ` + lockfile.LockFileName + ` is unchanged are skipped;
pass --retranslate to redo them anyway.

Flags override ` + config.SubkitFileName + `, which overrides built-in defaults.

Examples:
  subkit translate --provider openai --model gpt-4o-mini --lang vi
  subkit translate --provider gemini --model gemini-2.5-flash --lang vi,ru
  subkit translate --provider openai --base-url http://localhost:11434/v1 \
      --model llama3.1 --lang de season1/ep01.ass`,
		Args: cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, positional []string) {
			args.files = positional
			runTranslate(args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&args.provider, "provider", "p", "", "AI provider: openai or gemini")
	flags.StringVarP(&args.model, "model", "m", "", "Model name (e.g. gpt-4o-mini, gemini-2.5-flash)")
	flags.StringVar(&args.apiKey, "api-key", "", "API key (overrides stored credentials and environment)")
	flags.StringVar(&args.baseURL, "base-url", "", "Custom API base URL for OpenAI-compatible endpoints")
	flags.StringVarP(&args.langs, "lang", "l", "", "Target languages, comma-separated (e.g. vi,ru)")
	flags.StringVarP(&args.outputDir, "output-dir", "o", "", "Directory for translated files (default: next to sources)")
	flags.IntVarP(&args.batchSize, "batch-size", "b", 0, "Dialogue lines per request (default 89)")
	flags.BoolVar(&args.retranslate, "retranslate", false, "Translate files even when the lock file says they are unchanged")
	flags.StringVar(&args.prompt, "prompt", "", "Custom instruction template, may use {{targetLang}}")
	flags.StringVar(&args.promptFile, "prompt-file", "", "Read the instruction template from a file")
	flags.DurationVar(&args.requestDelay, "request-delay", 0, "Pause between batch requests (e.g. 500ms)")
	flags.DurationVar(&args.timeout, "timeout", 0, "Per-request timeout (default 2m)")
	flags.StringVar(&args.proxy, "proxy", "", "HTTP(S) proxy URL for API requests")
	flags.IntVar(&args.maxRetries, "max-retries", 0, "Attempts per request on 429/500/503 (default 20)")
	flags.DurationVar(&args.retryDelay, "retry-delay", 0, "Base delay between retries (default 2s)")
	flags.DurationVar(&args.retryCeiling, "retry-ceiling", 0, "Upper bound for the retry delay (default 30s)")
	flags.BoolVarP(&args.verbose, "verbose", "v", false, "Log per-batch detail")
	flags.BoolVar(&args.dryRun, "dry-run", false, "Report what would be translated without calling the API")

	registerProviderCompletion(cmd, "provider")

	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, cargs []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		switch args.provider {
		case translate.ProviderGemini:
			return []string{
				"gemini-2.5-flash\tFast and inexpensive",
				"gemini-2.5-pro\tHighest quality",
				"gemini-2.0-flash\tPrevious generation",
			}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderOpenAI:
			return []string{
				"gpt-4o-mini\tFast and inexpensive",
				"gpt-4o\tHigher quality",
				"gpt-4.1-mini\tNewer small model",
			}, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	})

	_ = cmd.RegisterFlagCompletionFunc("lang", func(cmd *cobra.Command, cargs []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		proj, err := config.Detect(rootDir, "")
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		out := make([]string, 0, len(proj.Languages))
		for _, lang := range proj.Languages {
			out = append(out, lang+"\t"+langmeta.Name(lang))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func registerProviderCompletion(cmd *cobra.Command, flag string) {
	_ = cmd.RegisterFlagCompletionFunc(flag, func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			translate.ProviderOpenAI + "\tOpenAI chat completions (and compatible endpoints)",
			translate.ProviderGemini + "\tGoogle AI (Gemini)",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

func runTranslate(a translateArgs) {
	sf, err := config.LoadSubkitFile(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	mergeFileConfig(&a, sf)

	if a.provider == "" {
		logError(i18n.T("No provider selected. Pass --provider or set one in %s."), config.SubkitFileName)
		fmt.Fprintf(os.Stderr, "\n%s\n  %-8s %s\n  %-8s %s\n",
			i18n.T("Available providers:"),
			translate.ProviderOpenAI, "OpenAI chat completions (and compatible endpoints via --base-url)",
			translate.ProviderGemini, "Google AI (Gemini)")
		os.Exit(1)
	}

	apiKey := settings.ResolveAPIKey(a.provider, a.apiKey)
	prov, err := resolveProvider(a, apiKey)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if err := validateProvider(prov); err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	proj, err := config.Detect(rootDir, a.outputDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	sources, err := selectSources(proj, a.files, sf)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		logError(i18n.T("No subtitle files found in %s"), proj.Root)
		os.Exit(1)
	}

	langs := parseLangList(a.langs)
	if len(langs) == 0 && sf != nil {
		langs = sf.Languages
	}
	if len(langs) == 0 {
		langs = proj.Languages
	}
	if sf != nil && sf.SourceLang != "" {
		langs = filterOutLang(langs, sf.SourceLang)
	}
	if len(langs) == 0 {
		logError(i18n.T("No target languages. Pass --lang or set languages in %s."), config.SubkitFileName)
		os.Exit(1)
	}
	for _, lang := range langs {
		if !langmeta.Valid(lang) {
			logWarning(i18n.T("Unrecognized language code %q, sending it to the model as-is"), lang)
		}
	}

	prompt, err := resolvePrompt(a, sf)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	lock, err := lockfile.Load(proj.Root)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	batches, skipped, err := planJobs(sources, langs, a, lock)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	pending := 0
	for _, batch := range batches {
		pending += len(batch.jobs)
	}
	if pending == 0 {
		logSuccess(i18n.T("Everything is up to date"))
		if skipped > 0 {
			logInfo(i18n.N("Skipped %d unchanged file", "Skipped %d unchanged files", skipped), skipped)
		}
		return
	}

	if a.dryRun {
		batchSize := a.batchSize
		if batchSize <= 0 {
			batchSize = translate.DefaultBatchSize
		}
		reportDryRun(batches, skipped, batchSize)
		return
	}

	for _, batch := range batches {
		for _, job := range batch.jobs {
			if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logWarning(i18n.T("Interrupted, stopping"))
		cancel()
	}()

	retry := translate.RetryPolicy{
		MaxAttempts:  a.maxRetries,
		BaseDelay:    a.retryDelay,
		DelayCeiling: a.retryCeiling,
	}

	totalCompleted, totalFailed, totalJobs := 0, 0, 0
	interrupted := false

	for _, batch := range batches {
		if len(batch.jobs) == 0 || interrupted {
			continue
		}
		totalJobs += len(batch.jobs)

		logInfo(i18n.N("Translating %d file into %s", "Translating %d files into %s", len(batch.jobs)),
			len(batch.jobs), langmeta.Name(batch.lang))

		label := batch.lang
		if flag := langFlag(batch.lang); flag != "" {
			label = flag + " " + batch.lang
		}
		reporter := newProgressReporter(label, a.verbose)

		opts := translate.Options{
			Provider:     prov,
			Language:     batch.lang,
			Prompt:       prompt,
			BatchSize:    a.batchSize,
			Retry:        retry,
			RequestDelay: a.requestDelay,
			Timeout:      a.timeout,
			Verbose:      a.verbose,
			OnProgress:   reporter.update,
			OnStatus: func(level translate.Level, message string) {
				reporter.interrupt()
				switch level {
				case translate.LevelWarning:
					logWarning("%s", message)
				case translate.LevelError:
					logError("%s", message)
				default:
					logInfo("%s", message)
				}
			},
		}

		sum, err := translate.TranslateFiles(ctx, batch.jobs, opts)
		reporter.finish()

		// Jobs run strictly in order, so the first Completed+Failed
		// entries are the processed ones.
		processed := sum.Completed + sum.Failed
		for i := 0; i < processed && i < len(batch.jobs); i++ {
			if _, failed := sum.Errors[batch.jobs[i].Input]; failed {
				continue
			}
			lock.Update(lockfile.SourceKey(batch.rels[i]), batch.lang, batch.hashes[i])
		}
		totalCompleted += sum.Completed
		totalFailed += sum.Failed

		if err != nil {
			if errors.Is(err, context.Canceled) {
				interrupted = true
			} else if processed == 0 {
				logError("%v", err)
				os.Exit(1)
			}
		}
	}

	if err := lock.Save(); err != nil {
		logWarning(i18n.T("Could not save lock file: %v"), err)
	}

	if interrupted {
		logWarning(i18n.T("Translation interrupted, progress saved"))
		os.Exit(1)
	}
	if totalFailed > 0 {
		logError(i18n.T("%d of %d translation(s) failed"), totalFailed, totalJobs)
		os.Exit(1)
	}
	logSuccess(i18n.N("Translated %d file", "Translated %d files", totalCompleted), totalCompleted)
	if skipped > 0 {
		logInfo(i18n.N("Skipped %d unchanged file", "Skipped %d unchanged files", skipped), skipped)
	}
}

// mergeFileConfig fills unset flags from .subkit.yaml.
func mergeFileConfig(a *translateArgs, sf *config.SubkitFile) {
	if sf == nil {
		return
	}
	if a.provider == "" {
		a.provider = sf.Provider
	}
	if a.model == "" {
		a.model = sf.Model
	}
	if a.baseURL == "" {
		a.baseURL = sf.BaseURL
	}
	if a.outputDir == "" {
		a.outputDir = sf.OutputDir
	}
	if a.batchSize == 0 {
		a.batchSize = sf.BatchSize
	}
	if a.requestDelay == 0 {
		a.requestDelay = sf.RequestDelay.Std()
	}
	if a.timeout == 0 {
		a.timeout = sf.Timeout.Std()
	}
	if a.maxRetries == 0 {
		a.maxRetries = sf.Retry.Attempts
	}
	if a.retryDelay == 0 {
		a.retryDelay = sf.Retry.Delay.Std()
	}
	if a.retryCeiling == 0 {
		a.retryCeiling = sf.Retry.Ceiling.Std()
	}
}

// resolveProvider builds the provider config from defaults, stored
// settings and flags.
func resolveProvider(a translateArgs, apiKey string) (translate.Provider, error) {
	id := strings.ToLower(strings.TrimSpace(a.provider))
	prov, ok := translate.DefaultProviders()[id]
	if !ok {
		return translate.Provider{}, fmt.Errorf("unknown provider %q (valid: %s, %s)",
			a.provider, translate.ProviderOpenAI, translate.ProviderGemini)
	}
	if a.baseURL != "" {
		prov.BaseURL = a.baseURL
	} else if stored := settings.GetBaseURL(id); stored != "" {
		prov.BaseURL = stored
	}
	prov.APIKey = apiKey
	if a.model != "" {
		prov.Model = a.model
	}
	if a.proxy != "" {
		prov.Proxy = a.proxy
	}
	if a.timeout > 0 {
		prov.Timeout = a.timeout
	}
	return prov, nil
}

// validateProvider checks that the resolved provider can serve requests.
// Custom endpoints may be keyless (local inference servers).
func validateProvider(prov translate.Provider) error {
	if prov.Model == "" {
		return fmt.Errorf("no model selected for provider %q; pass --model or set one in %s",
			prov.ID, config.SubkitFileName)
	}
	if prov.APIKey == "" && prov.BaseURL == translate.DefaultProviders()[prov.ID].BaseURL {
		return fmt.Errorf("no API key for provider %q; run 'subkit auth set --provider %s', pass --api-key, or export %s",
			prov.ID, prov.ID, settings.EnvVarForProvider(prov.ID))
	}
	return nil
}

// selectSources returns the root-relative sources to translate: explicit
// positional files when given, otherwise the configured source globs,
// otherwise every detected source.
func selectSources(proj *config.Project, files []string, sf *config.SubkitFile) ([]string, error) {
	if len(files) > 0 {
		out := make([]string, 0, len(files))
		seen := make(map[string]bool, len(files))
		for _, f := range files {
			rel, err := relToRoot(proj.Root, f)
			if err != nil {
				return nil, err
			}
			if !config.IsSubtitle(rel) {
				return nil, fmt.Errorf("%s is not a %s file", f, config.SubtitleExt)
			}
			if !fileExists(filepath.Join(rootDir, rel)) {
				return nil, fmt.Errorf("%s: no such file", f)
			}
			if lang := config.TranslatedLang(filepath.Base(rel)); lang != "" {
				logWarning(i18n.T("%s looks like a translated copy (%s)"), rel, lang)
			}
			if !seen[rel] {
				seen[rel] = true
				out = append(out, rel)
			}
		}
		return out, nil
	}
	if sf != nil && len(sf.Sources) > 0 {
		return expandSourceGlobs(proj.Root, sf.Sources)
	}
	return proj.Sources, nil
}

// relToRoot normalizes a user-supplied path to be relative to the
// project root. Root-relative paths win when the file exists there;
// anything outside the root is rejected.
func relToRoot(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		if cand := filepath.Clean(path); !strings.HasPrefix(cand, "..") && fileExists(filepath.Join(rootDir, cand)) {
			return cand, nil
		}
	}
	abs := path
	if !filepath.IsAbs(abs) {
		var err error
		abs, err = filepath.Abs(path)
		if err != nil {
			return "", err
		}
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the project root %s", path, root)
	}
	return rel, nil
}

// expandSourceGlobs resolves .subkit.yaml source patterns against the
// project root. Translated copies matched by a broad pattern are dropped.
func expandSourceGlobs(root string, patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, fmt.Errorf("sources pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !config.IsSubtitle(m) || !fileExists(m) {
				continue
			}
			if config.TranslatedLang(filepath.Base(m)) != "" {
				continue
			}
			rel, err := filepath.Rel(root, m)
			if err != nil {
				continue
			}
			if !seen[rel] {
				seen[rel] = true
				out = append(out, rel)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// resolvePrompt picks the instruction template: flags first, then the
// project config, then the built-in default (empty string).
func resolvePrompt(a translateArgs, sf *config.SubkitFile) (string, error) {
	if a.prompt != "" && a.promptFile != "" {
		return "", fmt.Errorf("--prompt and --prompt-file are mutually exclusive")
	}
	if a.prompt != "" {
		return a.prompt, nil
	}
	if a.promptFile != "" {
		return translate.LoadPromptFile(a.promptFile)
	}
	if sf == nil {
		return "", nil
	}
	if sf.Prompt != "" {
		return sf.Prompt, nil
	}
	if sf.PromptFile != "" {
		path := sf.PromptFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(rootDir, path)
		}
		return translate.LoadPromptFile(path)
	}
	return "", nil
}

// langBatch groups the pending jobs for one target language.
type langBatch struct {
	lang   string
	jobs   []translate.FileJob
	rels   []string // source path per job, relative to the project root
	hashes []string // source content hash per job
}

// planJobs builds the per-language job lists, skipping sources whose
// recorded hash matches and whose output already exists.
func planJobs(sources, langs []string, a translateArgs, lock *lockfile.LockFile) ([]langBatch, int, error) {
	skipped := 0
	batches := make([]langBatch, 0, len(langs))
	for _, lang := range langs {
		batch := langBatch{lang: lang}
		for _, src := range sources {
			srcPath := filepath.Join(rootDir, src)
			hash, err := lockfile.HashFile(srcPath)
			if err != nil {
				return nil, 0, fmt.Errorf("hash %s: %w", src, err)
			}
			outPath := config.OutputPath(src, lang, a.outputDir)
			if !filepath.IsAbs(outPath) {
				outPath = filepath.Join(rootDir, outPath)
			}
			if !a.retranslate && fileExists(outPath) && !lock.IsChanged(lockfile.SourceKey(src), lang, hash) {
				skipped++
				if a.verbose {
					logInfo(i18n.T("Skipping %s (%s): unchanged"), src, lang)
				}
				continue
			}
			batch.jobs = append(batch.jobs, translate.FileJob{Input: srcPath, Output: outPath})
			batch.rels = append(batch.rels, src)
			batch.hashes = append(batch.hashes, hash)
		}
		batches = append(batches, batch)
	}
	return batches, skipped, nil
}

func reportDryRun(batches []langBatch, skipped, batchSize int) {
	logInfo(i18n.T("Dry run: no requests sent, no files written"))
	for _, batch := range batches {
		for i, job := range batch.jobs {
			doc, err := assfile.ParseFile(job.Input)
			if err != nil {
				logWarning("%s: %v", batch.rels[i], err)
				continue
			}
			_, dialogues := doc.Stats()
			requests := 0
			if dialogues > 0 {
				requests = (dialogues + batchSize - 1) / batchSize
			}
			logInfo(i18n.T("%s -> %s (%s): %d dialogue lines, %d request(s)"),
				batch.rels[i], job.Output, batch.lang, dialogues, requests)
		}
	}
	if skipped > 0 {
		logInfo(i18n.N("Skipped %d unchanged file", "Skipped %d unchanged files", skipped), skipped)
	}
}

// ---------------------------------------------------------------------------
// live progress
// ---------------------------------------------------------------------------

// progressReporter renders per-document completion: a live bar on an
// interactive stderr, sparse percent lines otherwise.
type progressReporter struct {
	bar  *progressbar.ProgressBar
	last int
}

func newProgressReporter(label string, verbose bool) *progressReporter {
	r := &progressReporter{}
	if !verbose && isatty.IsTerminal(os.Stderr.Fd()) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(24),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

// update receives the engine's 0-100 completion for the current document.
// A drop below the previous value means a new document started.
func (r *progressReporter) update(percent int) {
	if r.bar != nil {
		_ = r.bar.Set(percent)
		return
	}
	if percent < r.last {
		r.last = 0
	}
	if percent/25 > r.last/25 {
		logInfo(i18n.T("Progress: %d%%"), percent)
	}
	r.last = percent
}

// interrupt clears the live bar so a log line prints on its own row.
func (r *progressReporter) interrupt() {
	if r.bar != nil {
		_ = r.bar.Clear()
	}
}

func (r *progressReporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// ---------------------------------------------------------------------------
// auth command
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage the API keys subkit uses to talk to providers.

Keys live in ` + "`$XDG_DATA_HOME/subkit/auth.json`" + ` (0600). Lookup order at
translation time: --api-key flag, ` + settings.EnvAPIKey + `, the provider's own
variable (OPENAI_API_KEY, GEMINI_API_KEY), then the stored key.

Examples:
  subkit auth set --provider openai
  subkit auth set --provider gemini --key YOUR_KEY
  subkit auth remove --provider openai
  subkit auth status`,
	}
	cmd.AddCommand(newAuthSetCmd(), newAuthRemoveCmd(), newAuthStatusCmd())
	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var provider, key, baseURL string

	cmd := &cobra.Command{
		Use:     "set",
		Aliases: []string{"login"},
		Short:   "Store an API key for a provider",
		Run: func(cmd *cobra.Command, args []string) {
			runAuthSet(provider, key, baseURL)
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider: openai or gemini")
	cmd.Flags().StringVar(&key, "key", "", "API key (prompted interactively when omitted)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL to store with the key")
	registerProviderCompletion(cmd, "provider")

	return cmd
}

func runAuthSet(provider, key, baseURL string) {
	interactive := key == ""
	reader := bufio.NewScanner(os.Stdin)

	if provider == "" {
		fmt.Fprintf(os.Stderr, "%s\n", i18n.T("Select a provider:"))
		fmt.Fprintf(os.Stderr, "  1) OpenAI (or compatible endpoint)\n")
		fmt.Fprintf(os.Stderr, "  2) Google AI (Gemini)\n")
		fmt.Fprintf(os.Stderr, "%s ", i18n.T("Choice [1-2]:"))
		if !reader.Scan() {
			logError(i18n.T("No selection"))
			os.Exit(1)
		}
		switch strings.TrimSpace(reader.Text()) {
		case "1":
			provider = translate.ProviderOpenAI
		case "2":
			provider = translate.ProviderGemini
		default:
			logError(i18n.T("Invalid selection"))
			os.Exit(1)
		}
	}

	provider = strings.ToLower(strings.TrimSpace(provider))
	prov, ok := translate.DefaultProviders()[provider]
	if !ok {
		logError(i18n.T("Unknown provider %q (valid: %s, %s)"),
			provider, translate.ProviderOpenAI, translate.ProviderGemini)
		os.Exit(1)
	}

	if key == "" {
		if existing := settings.GetAPIKey(provider); existing != "" {
			fmt.Fprintf(os.Stderr, i18n.T("Current key: %s (press Enter to keep it)")+"\n", settings.MaskKey(existing))
		}
		fmt.Fprintf(os.Stderr, "%s ", i18n.T("API key:"))
		if reader.Scan() {
			key = strings.TrimSpace(reader.Text())
		}
		if key == "" {
			if settings.GetAPIKey(provider) == "" {
				logError(i18n.T("No API key provided"))
				os.Exit(1)
			}
			logInfo(i18n.T("Keeping the stored key"))
		}
	}

	if interactive && baseURL == "" && provider == translate.ProviderOpenAI {
		if current := settings.GetBaseURL(provider); current != "" {
			fmt.Fprintf(os.Stderr, i18n.T("Current base URL: %s (press Enter to keep it)")+"\n", current)
		}
		fmt.Fprintf(os.Stderr, "%s ", i18n.T("Base URL (empty for api.openai.com):"))
		if reader.Scan() {
			baseURL = strings.TrimSpace(reader.Text())
		}
	}

	if key != "" {
		if err := settings.SetAPIKey(provider, key); err != nil {
			logError("%v", err)
			os.Exit(1)
		}
	}
	if baseURL != "" {
		if err := settings.SetBaseURL(provider, baseURL); err != nil {
			logError("%v", err)
			os.Exit(1)
		}
	}

	logSuccess(i18n.T("Credentials saved for %s"), prov.Name)
	logInfo(i18n.T("Stored in %s"), settings.FilePath())
}

func newAuthRemoveCmd() *cobra.Command {
	var provider string
	var all bool

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"logout"},
		Short:   "Remove stored API keys",
		Run: func(cmd *cobra.Command, args []string) {
			runAuthRemove(provider, all)
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider to remove")
	cmd.Flags().BoolVar(&all, "all", false, "Remove credentials for every provider")
	registerProviderCompletion(cmd, "provider")

	return cmd
}

func runAuthRemove(provider string, all bool) {
	if all {
		if err := settings.RemoveAll(); err != nil {
			logError("%v", err)
			os.Exit(1)
		}
		logSuccess(i18n.T("All stored credentials removed"))
		return
	}
	if provider == "" {
		logError(i18n.T("Pass --provider to remove one provider, or --all for everything"))
		os.Exit(1)
	}

	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := translate.DefaultProviders()[provider]; !ok {
		logError(i18n.T("Unknown provider %q (valid: %s, %s)"),
			provider, translate.ProviderOpenAI, translate.ProviderGemini)
		os.Exit(1)
	}
	if settings.Get(provider) == nil {
		logInfo(i18n.T("No credentials stored for %s"), provider)
		return
	}
	if err := settings.Remove(provider); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	logSuccess(i18n.T("Credentials removed for %s"), provider)
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"list"},
		Short:   "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			runAuthStatus()
		},
	}
}

func runAuthStatus() {
	store := settings.Load()

	fmt.Fprintf(os.Stderr, "\n%s\n", paint(colorBlue, i18n.T("Stored credentials")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  %s\n\n", settings.FilePath())

	known := []string{translate.ProviderOpenAI, translate.ProviderGemini}
	for _, id := range known {
		info := store[id]
		if info == nil || info.Key == "" {
			fmt.Fprintf(os.Stderr, "  %-8s %s\n", id, i18n.T("not configured"))
			continue
		}
		line := settings.MaskKey(info.Key)
		if info.BaseURL != "" {
			line += "  (" + info.BaseURL + ")"
		}
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", id, line)
	}
	for _, id := range store.Providers() {
		if id == translate.ProviderOpenAI || id == translate.ProviderGemini {
			continue
		}
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", id, settings.MaskKey(store[id].Key))
	}
	fmt.Fprintln(os.Stderr)

	if os.Getenv(settings.EnvAPIKey) != "" {
		logInfo(i18n.T("%s is set and overrides stored keys"), settings.EnvAPIKey)
	}
	for _, id := range known {
		if envVar := settings.EnvVarForProvider(id); envVar != "" && os.Getenv(envVar) != "" {
			logInfo(i18n.T("%s is set and overrides the stored %s key"), envVar, id)
		}
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// parseLangList splits a comma-separated language list, canonicalizing
// codes and dropping empties and duplicates.
func parseLangList(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		lang := langmeta.Canonical(part)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// intersectLanguages filters requested codes down to the available set,
// preserving request order.
func intersectLanguages(available, requested []string) []string {
	known := make(map[string]bool, len(available))
	for _, lang := range available {
		known[strings.TrimSpace(lang)] = true
	}
	var out []string
	for _, lang := range requested {
		lang = strings.TrimSpace(lang)
		if known[lang] {
			out = append(out, lang)
		}
	}
	return out
}

// filterOutLang removes one language from a list.
func filterOutLang(langs []string, lang string) []string {
	var out []string
	for _, l := range langs {
		if l != lang {
			out = append(out, l)
		}
	}
	return out
}

// progressBar renders a static completion bar like "██████░░░░  60%".
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := width * percent / 100
	color := colorGreen
	switch {
	case percent < 50:
		color = colorRed
	case percent < 100:
		color = colorYellow
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s%s%s %3d%%", color, bar, colorReset, percent)
}

// stripANSI removes the color codes paint and progressBar emit.
func stripANSI(s string) string {
	for _, code := range []string{colorReset, colorRed, colorGreen, colorYellow, colorBlue} {
		s = strings.ReplaceAll(s, code, "")
	}
	return s
}

// flagFromRegion maps a two-letter country code to its emoji flag.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	up := strings.ToUpper(region)
	r0, r1 := rune(up[0]), rune(up[1])
	if r0 < 'A' || r0 > 'Z' || r1 < 'A' || r1 > 'Z' {
		return ""
	}
	return string([]rune{0x1F1E6 + r0 - 'A', 0x1F1E6 + r1 - 'A'})
}

// langFlag returns the emoji flag for a language code. An explicit
// region subtag wins even when the language itself is unknown.
func langFlag(lang string) string {
	parts := strings.Split(strings.ReplaceAll(lang, "_", "-"), "-")
	if len(parts) >= 2 {
		if flag := flagFromRegion(parts[len(parts)-1]); flag != "" {
			return flag
		}
	}
	return langmeta.Flag(lang)
}

// langColumnWidth returns the widest code length for column alignment.
func langColumnWidth(langs []string) int {
	width := 0
	for _, lang := range langs {
		if len(lang) > width {
			width = len(lang)
		}
	}
	return width
}

// langCell renders a flag-and-code cell like "🇻🇳 vi", padded to width.
func langCell(lang string, width int) string {
	flag := langFlag(lang)
	if flag == "" {
		flag = "  "
	}
	return fmt.Sprintf("%s %-*s", flag, width, lang)
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
