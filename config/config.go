// Package config loads potrans settings and discovers the gettext catalogs
// of a project.
//
// Catalogs follow the standard layout:
//
//	<locale_dir>/<locale>/LC_MESSAGES/<domain>.po
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalog layout defaults.
const (
	DefaultLocaleDir = "locale"
	DefaultDomain    = "django"
)

// CatalogPath returns the .po path for a gettext locale.
func CatalogPath(localeDir, locale, domain string) string {
	return filepath.Join(localeDir, locale, "LC_MESSAGES", domain+".po")
}

// DetectLocales finds the locales that have a catalog for domain under
// localeDir, sorted by name.
func DetectLocales(localeDir, domain string) []string {
	entries, err := os.ReadDir(localeDir)
	if err != nil {
		return nil
	}

	var locales []string
	for _, entry := range entries {
		if !entry.IsDir() || !isLocaleName(entry.Name()) {
			continue
		}
		path := CatalogPath(localeDir, entry.Name(), domain)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			locales = append(locales, entry.Name())
		}
	}
	sort.Strings(locales)
	return locales
}

// DetectLocaleDir returns the locale directory of a project rooted at
// rootDir: "locale" when it exists, otherwise the first directory named
// "locale" or "locales" up to two levels down that holds LC_MESSAGES
// catalogs. Returns "" when nothing is found.
func DetectLocaleDir(rootDir string) string {
	candidates := []string{
		filepath.Join(rootDir, "locale"),
		filepath.Join(rootDir, "locales"),
	}
	patterns := []string{
		filepath.Join(rootDir, "*", "locale"),
		filepath.Join(rootDir, "*", "locales"),
		filepath.Join(rootDir, "*", "*", "locale"),
		filepath.Join(rootDir, "*", "*", "locales"),
	}
	for _, pattern := range patterns {
		if matches, err := filepath.Glob(pattern); err == nil {
			candidates = append(candidates, matches...)
		}
	}

	for _, dir := range candidates {
		if hasCatalogs(dir) {
			return dir
		}
	}
	return ""
}

// hasCatalogs reports whether dir contains any */LC_MESSAGES directory.
func hasCatalogs(dir string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, "*", "LC_MESSAGES"))
	return err == nil && len(matches) > 0
}

// isLocaleName checks if a directory name looks like a gettext locale
// (de, pt_BR, zh_Hans, sr@latin, ast).
func isLocaleName(s string) bool {
	base, _, _ := strings.Cut(s, "@")
	parts := strings.Split(base, "_")
	lang := parts[0]
	if len(lang) < 2 || len(lang) > 3 {
		return false
	}
	for _, r := range lang {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	for _, p := range parts[1:] {
		if len(p) < 2 || len(p) > 4 {
			return false
		}
	}
	return true
}
