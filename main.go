// potrans translates gettext PO catalogs with an OpenAI-compatible chat API.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/minios-linux/potrans/chunk"
	"github.com/minios-linux/potrans/codeblock"
	"github.com/minios-linux/potrans/config"
	"github.com/minios-linux/potrans/langmeta"
	"github.com/minios-linux/potrans/merge"
	"github.com/minios-linux/potrans/pipeline"
	po "github.com/minios-linux/potrans/pofile"
	"github.com/minios-linux/potrans/settings"
	"github.com/minios-linux/potrans/split"
	"github.com/minios-linux/potrans/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors, cleared when stderr is not a terminal.
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow, colorBlue = "", "", "", "", ""
}

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags and logger
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
	logger  = zerolog.Nop()
)

// newLogger returns the console logger used by the library packages.
func newLogger(out *os.File, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !isatty.IsTerminal(out.Fd()),
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "potrans",
		Short: "Translate gettext PO catalogs with a large language model",
		Long: `potrans translates the untranslated and fuzzy entries of gettext catalogs
through an OpenAI-compatible chat completion API.

Each catalog is split into translated and pending entries. The pending
entries are cut into token-bounded chunks, sent to the model, and the
fenced catalog fragments of the answers are merged back into the file.

Commands:
  translate   Translate catalogs in place
  status      Show translation statistics
  split       Print the pending entries of a catalog
  merge       Merge translated fragments into a catalog
  extract     Extract fenced code blocks from model output
  auth        Manage stored API keys`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !isatty.IsTerminal(os.Stderr.Fd()) {
				disableColors()
			}
			logger = newLogger(os.Stderr, verbose)
		},
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newTranslateCmd(),
		newStatusCmd(),
		newSplitCmd(),
		newMergeCmd(),
		newExtractCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("potrans version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	langs                   string
	endpoint, apiKey, model string
	baseURL, proxy, prompt  string
	keyword, mode           string
	chunkSize               int
	maxConcurrent           int
	temperature             float64
	timeout, requestDelay   time.Duration
	sequential, ordered     bool
	verify, dryRun          bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate catalogs using an LLM",
		Long: `Translate the pending entries of every catalog under the locale directory.

Settings come from .potrans.yaml in the project root; flags override them.
The API key is taken from --api-key, POTRANS_API_KEY, the endpoint's usual
variable (OPENAI_API_KEY, GROQ_API_KEY, ...) or the key stored with
'potrans auth login', in that order. A .env file in the project root is
loaded first.

Examples:
  # Translate every locale found under ./locale
  potrans translate

  # Translate German and French, one request at a time
  potrans translate --lang de,fr --sequential

  # Use a local Ollama server
  potrans translate --endpoint ollama --model llama3.2

  # Show what would be sent
  potrans translate --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, a)
		},
	}

	cmd.Flags().StringVar(&a.langs, "lang", "", "Languages to translate (comma-separated, default: all catalogs found)")
	cmd.Flags().StringVar(&a.endpoint, "endpoint", "", "API endpoint preset: openai, groq, openrouter, ollama, custom")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "API key (or POTRANS_API_KEY env var)")
	cmd.Flags().StringVar(&a.model, "model", "", "Model name (default "+translate.DefaultModel+")")
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&a.prompt, "prompt", "", "Custom system prompt")
	cmd.Flags().Float64Var(&a.temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().StringVar(&a.keyword, "keyword", "", "Only extract code blocks after this keyword in responses")

	cmd.Flags().IntVar(&a.chunkSize, "chunk-size", 0, "Token budget per request (default 1500)")
	cmd.Flags().StringVar(&a.mode, "mode", "", "Dispatch mode: concurrent or sequential")
	cmd.Flags().BoolVar(&a.sequential, "sequential", false, "Shorthand for --mode sequential")
	cmd.Flags().IntVar(&a.maxConcurrent, "max-concurrent", 0, "Maximum requests in flight (concurrent mode)")
	cmd.Flags().DurationVar(&a.requestDelay, "request-delay", 0, "Minimum delay between request launches (concurrent mode)")
	cmd.Flags().BoolVar(&a.ordered, "ordered", false, "Join responses in chunk order instead of arrival order")

	cmd.Flags().DurationVar(&a.timeout, "timeout", 0, "Per-request timeout (default 20m)")
	cmd.Flags().StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")

	cmd.Flags().BoolVar(&a.verify, "verify", false, "Load each rewritten catalog through a gettext runtime")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show what would be translated without calling the API")

	_ = cmd.RegisterFlagCompletionFunc("endpoint", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return endpointNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{string(translate.ModeConcurrent), string(translate.ModeSequential)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// applyFlags copies the flags the user set onto the file configuration.
func applyFlags(cmd *cobra.Command, f *config.File, a translateArgs) {
	changed := cmd.Flags().Changed
	if changed("endpoint") {
		f.Endpoint = a.endpoint
	}
	if changed("model") {
		f.Model = a.model
	}
	if changed("base-url") {
		f.BaseURL = a.baseURL
	}
	if changed("prompt") {
		f.Prompt = a.prompt
	}
	if changed("temperature") {
		f.Temperature = a.temperature
	}
	if changed("keyword") {
		f.Keyword = a.keyword
	}
	if changed("chunk-size") {
		f.ChunkSize = a.chunkSize
	}
	if changed("mode") {
		f.Mode = a.mode
	}
	if a.sequential {
		f.Mode = string(translate.ModeSequential)
	}
	if changed("max-concurrent") {
		f.MaxConcurrent = a.maxConcurrent
	}
	if changed("request-delay") {
		f.RequestDelay = a.requestDelay
	}
	if changed("ordered") {
		f.Ordered = a.ordered
	}
	if changed("timeout") {
		f.Timeout = a.timeout
	}
	if changed("verify") {
		f.Verify = a.verify
	}
}

func runTranslate(cmd *cobra.Command, a translateArgs) error {
	if err := config.LoadEnv(rootDir); err != nil {
		logWarning("%v", err)
	}
	f, err := config.LoadOrDefault(rootDir)
	if err != nil {
		return err
	}
	applyFlags(cmd, f, a)
	if err := f.Validate(); err != nil {
		return err
	}
	mode, err := translate.ParseMode(f.Mode)
	if err != nil {
		return err
	}

	locales, err := f.Locales(rootDir)
	if err != nil {
		return err
	}
	targets := selectTargets(locales, a.langs, langmeta.ToGettext(f.SourceLang))
	if len(targets) == 0 {
		return fmt.Errorf("no catalogs found under %s (domain %q); set languages in %s or use --lang", f.LocaleDir, f.Domain, config.FileName)
	}

	splitter, err := chunk.New(f.ChunkSize)
	if err != nil {
		return fmt.Errorf("loading tokenizer: %w", err)
	}

	runner := &pipeline.Runner{
		Splitter: splitter,
		Mode:     mode,
		Ordered:  f.Ordered,
		Keyword:  f.Keyword,
		Verify:   f.Verify,
		DryRun:   a.dryRun,
		Log:      logger.With().Str("sys", "pipeline").Logger(),
	}

	if !a.dryRun {
		key := settings.ResolveAPIKey(f.Endpoint, a.apiKey)
		if key == "" && f.Endpoint != "ollama" {
			return missingKeyError(f.Endpoint)
		}
		cfg := f.TranslateConfig(key)
		if a.proxy != "" {
			cfg.Proxy = a.proxy
		}
		runner.Client = translate.NewClient(cfg, translate.WithLogger(logger.With().Str("sys", "translate").Logger()))

		logInfo("Endpoint: %s, Model: %s", f.Endpoint, orDefault(f.Model, translate.DefaultModel))
	}
	if mode == translate.ModeConcurrent {
		logInfo("Mode: concurrent, max concurrent: %d", f.MaxConcurrent)
	} else {
		logInfo("Mode: sequential")
	}
	logInfo("Chunk size: %d tokens", f.ChunkSize)
	logInfo("Translating: %s", strings.Join(targetLocales(targets), ", "))

	runner.OnProgress = func(p pipeline.Progress) {
		switch p.Event {
		case pipeline.EventChunks:
			logInfo("  %s: %d/%d chunks", p.Target.Locale, p.Done, p.Total)
		case pipeline.EventDone:
			if a.dryRun {
				return
			}
			logSuccess("%s: %d/%d entries translated", p.Target.Locale, p.Done, p.Total)
		case pipeline.EventUntranslated:
			logWarning("%s: no chunk came back usable, catalog left unchanged", p.Target.Locale)
		}
	}

	// Ctrl-C cancels in-flight requests; nothing is written for the
	// interrupted locale.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum := runner.Run(ctx, targets)

	if a.dryRun {
		for _, r := range sum.Results {
			if r.Err == nil && !r.Skipped {
				logInfo("%s (%s): %d entries in %d chunks", r.Target.Locale, r.Target.Language, r.Pending, r.Chunks)
			}
		}
		return sum.Err()
	}

	if ctx.Err() != nil {
		logWarning("Translation interrupted")
	}
	if err := sum.Err(); err != nil {
		return fmt.Errorf("%d of %d locales failed:\n%w", len(sum.Failed()), len(sum.Results), err)
	}
	if n := len(sum.Untranslated()); n > 0 {
		logWarning("Translation complete, but %d of %d locales got no usable translation", n, len(sum.Results))
		return nil
	}
	logSuccess("Translation complete!")
	return nil
}

// selectTargets turns resolved locales into pipeline targets, keeping only
// the --lang selection (if any, minus the source language) and catalogs
// that exist.
func selectTargets(locales []config.Locale, langs, source string) []pipeline.Target {
	if langs != "" {
		available := make([]string, len(locales))
		for i, l := range locales {
			available[i] = l.Locale
		}
		var requested []string
		for _, l := range strings.Split(langs, ",") {
			requested = append(requested, langmeta.ToGettext(strings.TrimSpace(l)))
		}
		requested = filterOutLang(requested, source)
		keep := make(map[string]bool)
		for _, l := range intersectLanguages(available, requested) {
			keep[l] = true
		}
		for _, l := range requested {
			if l != "" && !keep[l] {
				logWarning("No catalog configured for %s", l)
			}
		}
		var filtered []config.Locale
		for _, l := range locales {
			if keep[l.Locale] {
				filtered = append(filtered, l)
			}
		}
		locales = filtered
	}

	var targets []pipeline.Target
	for _, l := range locales {
		if !fileExists(l.Path) {
			logWarning("Catalog not found: %s", l.Path)
			continue
		}
		targets = append(targets, pipeline.Target{Locale: l.Locale, Language: l.Name, Path: l.Path})
	}
	return targets
}

func targetLocales(targets []pipeline.Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Locale
	}
	return out
}

func missingKeyError(endpoint string) error {
	msg := fmt.Sprintf("endpoint '%s' requires an API key\n\n"+
		"Option 1: Store your API key:\n"+
		"  potrans auth login --endpoint %s\n\n"+
		"Option 2: Pass key directly:\n"+
		"  --api-key YOUR_KEY or export %s=YOUR_KEY", endpoint, endpoint, settings.EnvAPIKey)
	if env := settings.EnvVarForEndpoint(endpoint); env != "" {
		msg += fmt.Sprintf("\n\nOption 3: export %s=YOUR_KEY", env)
	}
	return errors.New(msg)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show translation statistics",
		Long: `Show the configuration in effect and per-language translation statistics
for every catalog under the locale directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	f, err := config.LoadOrDefault(rootDir)
	if err != nil {
		return err
	}
	locales, err := f.Locales(rootDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%sProject%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  Locale dir:  %s\n", f.LocaleDir)
	fmt.Fprintf(os.Stderr, "  Domain:      %s\n", f.Domain)
	fmt.Fprintf(os.Stderr, "  Source:      %s\n", f.SourceLang)
	fmt.Fprintf(os.Stderr, "  Endpoint:    %s (%s)\n", f.Endpoint, orDefault(f.ResolveBaseURL(), translate.DefaultBaseURL))
	fmt.Fprintf(os.Stderr, "  Model:       %s\n", orDefault(f.Model, translate.DefaultModel))
	fmt.Fprintf(os.Stderr, "  Mode:        %s\n", f.Mode)
	fmt.Fprintln(os.Stderr)

	if len(locales) == 0 {
		logInfo("No catalogs found under %s", f.LocaleDir)
		return nil
	}

	codes := make([]string, len(locales))
	for i, l := range locales {
		codes[i] = l.Locale
	}
	width := langColumnWidth(codes)

	fmt.Fprintf(os.Stderr, "%sTranslation Statistics%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "%-*s %-10s %-8s %-8s %-25s %s\n", width+3, "Lang", "Translated", "Fuzzy", "Untrans.", "Progress", "Name")

	for _, l := range locales {
		cat, err := po.ParseFile(l.Path)
		if err != nil {
			if !fileExists(l.Path) {
				fmt.Fprintf(os.Stderr, "%s %-10s\n", langCell(l.Locale, width), "missing")
			} else {
				fmt.Fprintf(os.Stderr, "%s %serror%s %v\n", langCell(l.Locale, width), colorRed, colorReset, err)
			}
			continue
		}
		fmt.Fprintln(os.Stderr, statusRow(l.Locale, width, cat))
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// statusRow renders one line of the statistics table: counts, progress and
// the language's native name. A catalog whose Language header names
// another locale is flagged.
func statusRow(locale string, width int, cat *po.File) string {
	total, translated, fuzzy, untranslated := cat.Stats()
	percent := 0
	if total > 0 {
		percent = translated * 100 / total
	}
	row := fmt.Sprintf("%s %-10d %-8d %-8d %s  %s", langCell(locale, width), translated, fuzzy, untranslated, progressBar(percent, 20), langmeta.Resolve(locale).Native)
	if hdr := cat.HeaderField("Language"); hdr != "" && langmeta.ToGettext(hdr) != locale {
		row += fmt.Sprintf("  %s(Language header: %s)%s", colorYellow, hdr, colorReset)
	}
	return strings.TrimRight(row, " ")
}

// progressBar renders a colored bar followed by the percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset + fmt.Sprintf("%4d%%", percent)
}

// langColumnWidth returns the width of the longest language code.
func langColumnWidth(langs []string) int {
	w := 0
	for _, l := range langs {
		if len(l) > w {
			w = len(l)
		}
	}
	return w
}

// langCell renders a flag (or two spaces) and the padded language code.
func langCell(lang string, width int) string {
	flag := langmeta.Resolve(lang).Flag
	if flag == "" {
		flag = "  "
	}
	return fmt.Sprintf("%s %-*s", flag, width, lang)
}

// intersectLanguages returns the entries of filter present in available,
// in filter order.
func intersectLanguages(available, filter []string) []string {
	set := make(map[string]bool, len(available))
	for _, l := range available {
		set[l] = true
	}
	var out []string
	for _, l := range filter {
		l = strings.TrimSpace(l)
		if set[l] {
			out = append(out, l)
		}
	}
	return out
}

// filterOutLang removes lang and duplicates from langs.
func filterOutLang(langs []string, lang string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range langs {
		if l == lang || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// ---------------------------------------------------------------------------
// split / merge / extract
// ---------------------------------------------------------------------------

func newSplitCmd() *cobra.Command {
	var translatedOut, pendingOut string

	cmd := &cobra.Command{
		Use:   "split FILE",
		Short: "Split a catalog into translated and pending entries",
		Long: `Split a catalog into the entries that are already translated and the
entries that still need a translation. The pending entries are printed to
stdout unless --pending is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			translated, pending, err := split.File(args[0])
			if err != nil {
				return err
			}
			if translatedOut != "" {
				if err := os.WriteFile(translatedOut, []byte(translated), 0644); err != nil {
					return err
				}
			}
			if pendingOut != "" {
				return os.WriteFile(pendingOut, []byte(pending), 0644)
			}
			if pending == "" {
				logSuccess("Nothing to translate in %s", args[0])
				return nil
			}
			_, err = io.WriteString(cmd.OutOrStdout(), pending)
			return err
		},
	}

	cmd.Flags().StringVar(&translatedOut, "translated", "", "Write the translated entries to this file")
	cmd.Flags().StringVar(&pendingOut, "pending", "", "Write the pending entries to this file")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var pendingPath string

	cmd := &cobra.Command{
		Use:   "merge TRANSLATED FRESH TARGET",
		Short: "Merge translated fragments into a catalog",
		Long: `Combine the already translated entries (TRANSLATED) with freshly
translated entries (FRESH), reattach the header of TARGET and overwrite
TARGET with the result.

With --pending, entries of the pending file that FRESH does not contain are
kept untranslated and entries FRESH adds on its own are dropped.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			translated, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fresh, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			var rep merge.Report
			if pendingPath != "" {
				pending, err := os.ReadFile(pendingPath)
				if err != nil {
					return err
				}
				rep, err = merge.FragmentsWithPending(string(translated), string(fresh), string(pending), args[2])
				if err != nil {
					return err
				}
			} else if rep, err = merge.Fragments(string(translated), string(fresh), args[2]); err != nil {
				return err
			}

			logSuccess("Merged into %s", args[2])
			if rep.Restored > 0 || rep.Dropped > 0 {
				logInfo("  applied %d, restored %d, dropped %d", rep.Applied, rep.Restored, rep.Dropped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pendingPath, "pending", "", "Pending entries that were sent for translation")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var keyword string

	cmd := &cobra.Command{
		Use:   "extract [FILE]",
		Short: "Extract fenced code blocks from model output",
		Long: `Print the bodies of all fenced code blocks in FILE (or stdin), joined by
newlines. With --keyword only text after its first occurrence is scanned.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			out := codeblock.Extract(string(data), keyword)
			if out == "" {
				return errors.New("no code block found")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "Start scanning at the first occurrence of this text")
	return cmd
}

// ---------------------------------------------------------------------------
// auth (API key management)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API keys",
		Long: `Manage API keys stored in ` + "`$XDG_DATA_HOME/potrans/auth.json`" + `.

Endpoints:
  openai       OpenAI (default)
  groq         Groq Cloud
  openrouter   OpenRouter
  ollama       Local Ollama server, no key needed
  custom       Any OpenAI-compatible endpoint (store the URL with --base-url)

Examples:
  potrans auth login                          Store an OpenAI key
  potrans auth login --endpoint groq          Store a Groq key
  potrans auth login --endpoint custom --base-url https://llm.example.com/v1
  potrans auth logout --endpoint groq         Remove the Groq key
  potrans auth logout                         Remove all keys
  potrans auth list                           Show stored keys`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func endpointNames() []string {
	return []string{"openai", "groq", "openrouter", "ollama", "custom"}
}

func newAuthLoginCmd() *cobra.Command {
	var endpoint, baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for an endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return authLogin(cmd.InOrStdin(), endpoint, baseURL)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "openai", "Endpoint to store the key for")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL to store with the key")
	_ = cmd.RegisterFlagCompletionFunc("endpoint", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return endpointNames(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func authLogin(in io.Reader, endpoint, baseURL string) error {
	if endpoint == "custom" && baseURL == "" {
		baseURL = settings.GetBaseURL(endpoint)
		if baseURL == "" {
			return errors.New("endpoint 'custom' requires --base-url")
		}
	}

	fmt.Fprintf(os.Stderr, "\n%s%s API Key Setup%s\n", colorBlue, endpoint, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)

	existing := settings.GetAPIKey(endpoint)
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  Current key: %s%s%s\n", colorYellow, settings.MaskKey(existing), colorReset)
		fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter API key: ")
	}

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return errors.New("no input received")
	}
	key := strings.TrimSpace(scanner.Text())

	if key == "" {
		if existing == "" {
			return errors.New("no API key provided")
		}
		if baseURL == "" {
			logInfo("Keeping existing key")
			return nil
		}
		key = existing
	}

	if err := settings.SetAPIKey(endpoint, key, baseURL); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}
	logSuccess("%s API key saved to %s", endpoint, settings.FilePath())
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		Long: `Remove the stored key for one endpoint, or all keys when --endpoint is
not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint != "" {
				if settings.Get(endpoint) == nil {
					return fmt.Errorf("no key stored for '%s'; run 'potrans auth list' to see stored keys", endpoint)
				}
				if err := settings.Remove(endpoint); err != nil {
					return fmt.Errorf("removing %s key: %w", endpoint, err)
				}
				logSuccess("%s key removed", endpoint)
				return nil
			}
			if err := settings.RemoveAll(); err != nil {
				return fmt.Errorf("removing keys: %w", err)
			}
			logSuccess("All stored keys removed")
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint to log out of (default: all)")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored API keys",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()

			fmt.Fprintf(os.Stderr, "\n%sStored Keys%s\n", colorBlue, colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			names := store.Names()
			if len(names) == 0 {
				fmt.Fprintf(os.Stderr, "  %snone%s\n", colorRed, colorReset)
			}
			for _, name := range names {
				info := store[name]
				status := fmt.Sprintf("%sconfigured%s (key: %s)", colorGreen, colorReset, settings.MaskKey(info.Key))
				if info.BaseURL != "" {
					status += fmt.Sprintf("\n  %14s endpoint: %s", "", info.BaseURL)
				}
				fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, status)
			}

			fmt.Fprintf(os.Stderr, "\n  %sEnvironment Variables%s\n", colorYellow, colorReset)
			for _, env := range []string{settings.EnvAPIKey, "OPENAI_API_KEY", "GROQ_API_KEY", "OPENROUTER_API_KEY"} {
				if v := os.Getenv(env); v != "" {
					fmt.Fprintf(os.Stderr, "  %-20s %s%s%s\n", env, colorGreen, settings.MaskKey(v), colorReset)
				} else {
					fmt.Fprintf(os.Stderr, "  %-20s %snot set%s\n", env, colorRed, colorReset)
				}
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// fileExists returns true if the file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
