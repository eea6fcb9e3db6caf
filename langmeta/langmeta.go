// Package langmeta converts between language codes and gettext locale
// names and provides display metadata (English and native names, emoji
// flags) for prompts and CLI output.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes a language.
type Meta struct {
	// Code is the BCP 47 form, e.g. "zh-Hans".
	Code string
	// Gettext is the locale directory form, e.g. "zh_Hans".
	Gettext string
	// Name is the English name sent to the model, e.g. "Simplified Chinese".
	Name string
	// Native is the language's name for itself.
	Native string
	// Flag is an emoji flag for the most likely region, if any.
	Flag string
}

// splitModifier separates a gettext "@modifier" suffix.
func splitModifier(lang string) (string, string) {
	if i := strings.IndexByte(lang, '@'); i >= 0 {
		return lang[:i], lang[i:]
	}
	return lang, ""
}

// canonicalize normalizes case and separators without rewriting subtags:
// "pt_br" becomes "pt-BR" and "zh-hans" becomes "zh-Hans".
func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	base, mod := splitModifier(normalized)
	tag, err := language.Raw.Parse(base)
	if err != nil {
		parts := strings.Split(base, "-")
		parts[0] = strings.ToLower(parts[0])
		if len(parts) >= 2 {
			parts[1] = strings.ToUpper(parts[1])
		}
		return strings.Join(parts, "-") + mod
	}
	return tag.String() + mod
}

// ToGettext converts a language code to the locale directory name gettext
// tools use: "zh-hans" becomes "zh_Hans", "pt-br" becomes "pt_BR".
func ToGettext(lang string) string {
	return strings.ReplaceAll(canonicalize(lang), "-", "_")
}

// ToCode converts a gettext locale name back to a BCP 47 code.
func ToCode(locale string) string {
	return canonicalize(locale)
}

// Resolve returns best-effort metadata for lang. Unknown codes keep the
// input as their name.
func Resolve(lang string) Meta {
	code := canonicalize(lang)
	meta := Meta{
		Code:    code,
		Gettext: strings.ReplaceAll(code, "-", "_"),
		Name:    strings.TrimSpace(lang),
	}

	base, _ := splitModifier(code)
	tag, err := language.Raw.Parse(base)
	if err != nil {
		return meta
	}

	if name := display.English.Tags().Name(tag); name != "" {
		meta.Name = name
	}
	if native := display.Self.Name(tag); native != "" {
		meta.Native = native
	}
	if region, conf := tag.Region(); conf != language.No {
		meta.Flag = flag(region.String())
	}
	return meta
}

// flag turns a two-letter region code into regional indicator symbols.
func flag(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + r - 'A')
	}
	return b.String()
}
