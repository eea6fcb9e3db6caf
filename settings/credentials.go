// Package settings stores potrans user credentials.
//
// Credentials live in the XDG data directory:
//
//	$XDG_DATA_HOME/potrans/auth.json  (default: ~/.local/share/potrans/auth.json)
//
// The file is a JSON object keyed by endpoint name ("openai", "groq",
// "ollama" or any custom name). Permissions are 0600.
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. POTRANS_API_KEY environment variable
//  3. The endpoint's conventional variable (OPENAI_API_KEY, GROQ_API_KEY, ...)
//  4. This credential store
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"
)

const (
	dataDirName = "potrans"
	fileName    = "auth.json"

	// EnvAPIKey overrides every endpoint-specific variable.
	EnvAPIKey = "POTRANS_API_KEY"
)

// Info is the credential stored per endpoint.
type Info struct {
	// Key is the API key.
	Key string `json:"key,omitempty"`
	// BaseURL is an optional endpoint URL saved with the key.
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds all credentials, keyed by endpoint name.
type Store map[string]*Info

// Names returns the endpoint names in sorted order.
func (s Store) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for potrans.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the potrans data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save atomically writes the credential store with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("securing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the credential for an endpoint, or nil if not found.
func Get(name string) *Info {
	return Load()[name]
}

// Set stores a credential for an endpoint (upsert).
func Set(name string, info *Info) error {
	store := Load()
	store[name] = info
	return Save(store)
}

// Remove deletes the credential for an endpoint.
func Remove(name string) error {
	store := Load()
	if _, ok := store[name]; !ok {
		return nil
	}
	delete(store, name)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// API key helpers
// ---------------------------------------------------------------------------

// SetAPIKey stores an API key and optional base URL for an endpoint.
func SetAPIKey(name, key, baseURL string) error {
	return Set(name, &Info{Key: key, BaseURL: baseURL})
}

// GetAPIKey returns the stored API key for an endpoint, or "".
func GetAPIKey(name string) string {
	if info := Get(name); info != nil {
		return info.Key
	}
	return ""
}

// GetBaseURL returns the stored base URL for an endpoint, or "".
func GetBaseURL(name string) string {
	if info := Get(name); info != nil {
		return info.BaseURL
	}
	return ""
}

// EnvVarForEndpoint returns the conventional API key variable for an
// endpoint, or "" when it has none.
func EnvVarForEndpoint(name string) string {
	switch name {
	case "openai", "custom":
		return "OPENAI_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

// ResolveAPIKey applies the lookup order described in the package doc.
func ResolveAPIKey(name, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		return v
	}
	if env := EnvVarForEndpoint(name); env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return GetAPIKey(name)
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
