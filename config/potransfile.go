package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/potrans/chunk"
	"github.com/minios-linux/potrans/langmeta"
	"github.com/minios-linux/potrans/settings"
	"github.com/minios-linux/potrans/translate"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// FileName is the config file looked up in the project root.
const FileName = ".potrans.yaml"

// File is the .potrans.yaml structure.
type File struct {
	// Languages lists target languages. Empty means every locale found on disk.
	Languages []string `yaml:"languages,omitempty"`
	// SourceLang is the language the msgids are written in (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// LocaleDir is the locale directory relative to the project root.
	LocaleDir string `yaml:"locale_dir,omitempty"`
	// Domain is the catalog name (default "django").
	Domain string `yaml:"domain,omitempty"`

	// Endpoint names the API preset and credential entry (default "openai").
	Endpoint string `yaml:"endpoint,omitempty"`
	// Model is the chat model.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the endpoint's URL.
	BaseURL string `yaml:"base_url,omitempty"`
	// Prompt overrides the system prompt.
	Prompt string `yaml:"prompt,omitempty"`
	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature,omitempty"`

	// ChunkSize is the token budget per request.
	ChunkSize int `yaml:"chunk_size,omitempty"`
	// MaxConcurrent caps in-flight requests per language.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// RequestDelay spaces request launches.
	RequestDelay time.Duration `yaml:"request_delay,omitempty"`
	// Mode is "sequential" or "concurrent".
	Mode string `yaml:"mode,omitempty"`
	// Ordered joins responses in chunk order instead of arrival order.
	Ordered bool `yaml:"ordered,omitempty"`
	// Verify loads each rewritten catalog through a gettext runtime.
	Verify bool `yaml:"verify,omitempty"`
	// Keyword anchors code block extraction in responses.
	Keyword string `yaml:"keyword,omitempty"`

	// LanguageNames overrides the language name used in prompts, keyed by
	// language code or locale.
	LanguageNames map[string]string `yaml:"language_names,omitempty"`
}

// Endpoints maps preset names to OpenAI-compatible base URLs.
var Endpoints = map[string]string{
	"openai":     translate.DefaultBaseURL,
	"groq":       "https://api.groq.com/openai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"ollama":     "http://localhost:11434/v1",
}

// Default returns the configuration used when no .potrans.yaml exists.
func Default() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

func (f *File) applyDefaults() {
	if f.SourceLang == "" {
		f.SourceLang = "en"
	}
	if f.LocaleDir == "" {
		f.LocaleDir = DefaultLocaleDir
	}
	if f.Domain == "" {
		f.Domain = DefaultDomain
	}
	if f.Endpoint == "" {
		f.Endpoint = "openai"
	}
	if f.ChunkSize == 0 {
		f.ChunkSize = chunk.DefaultSize
	}
	if f.MaxConcurrent == 0 {
		f.MaxConcurrent = translate.DefaultMaxConcurrent
	}
	if f.Timeout == 0 {
		f.Timeout = translate.DefaultTimeout
	}
	if f.Mode == "" {
		f.Mode = string(translate.ModeConcurrent)
	}
}

// Validate checks value ranges.
func (f *File) Validate() error {
	if f.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", f.ChunkSize)
	}
	if f.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", f.MaxConcurrent)
	}
	if f.Timeout < 0 || f.RequestDelay < 0 {
		return errors.New("timeout and request_delay must not be negative")
	}
	if f.Temperature < 0 || f.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", f.Temperature)
	}
	if _, err := translate.ParseMode(f.Mode); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads .potrans.yaml from rootDir, applies defaults and validates.
// Returns nil if no config file exists. Unknown keys are rejected.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// LoadOrDefault is Load falling back to Default when no file exists. When
// the default locale directory is missing it tries to detect one.
func LoadOrDefault(rootDir string) (*File, error) {
	f, err := Load(rootDir)
	if err != nil {
		return nil, err
	}
	if f != nil {
		return f, nil
	}

	f = Default()
	if !hasCatalogs(filepath.Join(rootDir, f.LocaleDir)) {
		if dir := DetectLocaleDir(rootDir); dir != "" {
			if rel, err := filepath.Rel(rootDir, dir); err == nil {
				f.LocaleDir = rel
			}
		}
	}
	return f, nil
}

// LoadEnv loads rootDir/.env into the process environment without
// overriding variables that are already set. A missing file is not an
// error.
func LoadEnv(rootDir string) error {
	path := filepath.Join(rootDir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolving
// ---------------------------------------------------------------------------

// Locale is one translation target resolved against the file system.
type Locale struct {
	// Code is the language code as configured or discovered.
	Code string
	// Locale is the gettext directory name.
	Locale string
	// Name is the language name used in prompts.
	Name string
	// Path is the absolute catalog path.
	Path string
}

// Locales resolves the configured languages, or the discovered ones, into
// catalog paths. The source language is skipped.
func (f *File) Locales(rootDir string) ([]Locale, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	localeDir := filepath.Join(absRoot, f.LocaleDir)

	langs := f.Languages
	if len(langs) == 0 {
		langs = DetectLocales(localeDir, f.Domain)
	}

	source := langmeta.ToGettext(f.SourceLang)
	seen := make(map[string]bool)
	var out []Locale
	for _, lang := range langs {
		locale := langmeta.ToGettext(lang)
		if locale == "" || locale == source || seen[locale] {
			continue
		}
		seen[locale] = true
		out = append(out, Locale{
			Code:   lang,
			Locale: locale,
			Name:   f.LanguageName(lang),
			Path:   CatalogPath(localeDir, locale, f.Domain),
		})
	}
	return out, nil
}

// LanguageName returns the prompt name for lang: an explicit override from
// language_names, otherwise the English display name.
func (f *File) LanguageName(lang string) string {
	for _, key := range []string{lang, langmeta.ToGettext(lang), langmeta.ToCode(lang), strings.ToLower(lang)} {
		if name, ok := f.LanguageNames[key]; ok && name != "" {
			return name
		}
	}
	return langmeta.Resolve(lang).Name
}

// ResolveBaseURL returns base_url, else the URL saved with the endpoint's
// credential, else the endpoint preset.
func (f *File) ResolveBaseURL() string {
	if f.BaseURL != "" {
		return f.BaseURL
	}
	if u := settings.GetBaseURL(f.Endpoint); u != "" {
		return u
	}
	return Endpoints[f.Endpoint]
}

// TranslateConfig builds the client configuration.
func (f *File) TranslateConfig(apiKey string) translate.Config {
	return translate.Config{
		Model:         f.Model,
		BaseURL:       f.ResolveBaseURL(),
		APIKey:        apiKey,
		Temperature:   f.Temperature,
		Timeout:       f.Timeout,
		MaxConcurrent: f.MaxConcurrent,
		RequestDelay:  f.RequestDelay,
		SystemPrompt:  f.Prompt,
	}
}
