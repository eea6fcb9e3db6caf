package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/potrans/config"
	po "github.com/minios-linux/potrans/pofile"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		width   int
		want    string
	}{
		{
			name:    "clamps below zero",
			percent: -10,
			width:   4,
			want:    colorRed + "░░░░" + colorReset + "   0%",
		},
		{
			name:    "mid range uses yellow",
			percent: 50,
			width:   4,
			want:    colorYellow + "██░░" + colorReset + "  50%",
		},
		{
			name:    "clamps above hundred",
			percent: 120,
			width:   4,
			want:    colorGreen + "████" + colorReset + " 100%",
		},
	}

	for _, tc := range tests {
		if got := progressBar(tc.percent, tc.width); got != tc.want {
			t.Fatalf("%s: progressBar() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestLangHelpers(t *testing.T) {
	langs := []string{"de", "pt_BR", "zh_Hant"}
	if got := langColumnWidth(langs); got != len("zh_Hant") {
		t.Fatalf("langColumnWidth() = %d, want %d", got, len("zh_Hant"))
	}

	cell := langCell("pt_BR", 7)
	if !strings.Contains(cell, "🇧🇷") || !strings.Contains(cell, "pt_BR  ") {
		t.Fatalf("langCell() = %q, want flag and padded language code", cell)
	}
}

func TestStatusRow(t *testing.T) {
	cat, err := po.ParseString(deCatalog)
	if err != nil {
		t.Fatal(err)
	}

	row := statusRow("de", 2, cat)
	if !strings.Contains(row, "Deutsch") {
		t.Fatalf("statusRow(de) = %q, want native name", row)
	}
	if !strings.Contains(row, "  50%") {
		t.Fatalf("statusRow(de) = %q, want 50%% progress", row)
	}
	if strings.Contains(row, "Language header") {
		t.Fatalf("statusRow(de) = %q, want no header warning", row)
	}

	row = statusRow("fr", 2, cat)
	if !strings.Contains(row, "(Language header: de)") {
		t.Fatalf("statusRow(fr) = %q, want header mismatch", row)
	}
}

func TestIntersectLanguages(t *testing.T) {
	available := []string{"en", "fr", "de", "es"}
	filter := []string{" fr ", "es", "it"}
	want := []string{"fr", "es"}

	if got := intersectLanguages(available, filter); !reflect.DeepEqual(got, want) {
		t.Fatalf("intersectLanguages() = %#v, want %#v", got, want)
	}
}

func TestFilterOutLang(t *testing.T) {
	langs := []string{"en", "fr", "en", "de"}
	want := []string{"fr", "de"}

	if got := filterOutLang(langs, "en"); !reflect.DeepEqual(got, want) {
		t.Fatalf("filterOutLang() = %#v, want %#v", got, want)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(filePath, []byte("ok"), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}

	if !fileExists(filePath) {
		t.Fatalf("fileExists(file) = false, want true")
	}
	if fileExists(dir) {
		t.Fatalf("fileExists(directory) = true, want false")
	}
	if fileExists(filepath.Join(dir, "missing.txt")) {
		t.Fatalf("fileExists(missing) = true, want false")
	}
}

func TestSelectTargets(t *testing.T) {
	dir := t.TempDir()
	mk := func(locale string, create bool) config.Locale {
		path := filepath.Join(dir, locale+".po")
		if create {
			if err := os.WriteFile(path, []byte(""), 0644); err != nil {
				t.Fatal(err)
			}
		}
		return config.Locale{Code: locale, Locale: locale, Name: locale, Path: path}
	}
	locales := []config.Locale{mk("de", true), mk("fr", true), mk("pt_BR", true), mk("es", false)}

	targets := selectTargets(locales, "", "en")
	if got := targetLocales(targets); !reflect.DeepEqual(got, []string{"de", "fr", "pt_BR"}) {
		t.Fatalf("all targets = %v, want existing catalogs only", got)
	}

	targets = selectTargets(locales, "pt-br, de,en,it", "en")
	if got := targetLocales(targets); !reflect.DeepEqual(got, []string{"de", "pt_BR"}) {
		t.Fatalf("selected targets = %v, want [de pt_BR]", got)
	}
}

// ---------------------------------------------------------------------------
// Command tests
// ---------------------------------------------------------------------------

const deCatalog = `msgid ""
msgstr ""
"Language: de\n"
"Content-Type: text/plain; charset=UTF-8\n"

#: app.py:1
msgid "Phone number"
msgstr "Telefonnummer"

#: app.py:2
msgid "Hello"
msgstr ""
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, env := range []string{"POTRANS_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(env, "")
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeProject(t *testing.T) (root, catalog string) {
	t.Helper()
	root = t.TempDir()
	catalog = filepath.Join(root, "locale", "de", "LC_MESSAGES", "django.po")
	if err := os.MkdirAll(filepath.Dir(catalog), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(catalog, []byte(deCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	return root, catalog
}

func TestExtractCommand(t *testing.T) {
	out, err := execute(t, "Answer:\n```po\nmsgid \"a\"\nmsgstr \"b\"\n```\n", "extract")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out != "msgid \"a\"\nmsgstr \"b\"\n" {
		t.Fatalf("extract output = %q", out)
	}

	if _, err := execute(t, "no fences here", "extract"); err == nil {
		t.Fatal("extract without code block succeeded, want error")
	}
}

func TestSplitCommand(t *testing.T) {
	_, catalog := writeProject(t)
	out, err := execute(t, "", "split", catalog)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !strings.Contains(out, `msgid "Hello"`) || strings.Contains(out, "Phone number") {
		t.Fatalf("split output = %q, want only the pending entry", out)
	}
}

func TestMergeCommand(t *testing.T) {
	_, catalog := writeProject(t)
	dir := t.TempDir()
	translated := filepath.Join(dir, "translated.po")
	fresh := filepath.Join(dir, "fresh.po")
	os.WriteFile(translated, []byte("msgid \"Phone number\"\nmsgstr \"Telefonnummer\"\n"), 0644)
	os.WriteFile(fresh, []byte("msgid \"Hello\"\nmsgstr \"Hallo\"\n"), 0644)

	if _, err := execute(t, "", "merge", translated, fresh, catalog); err != nil {
		t.Fatalf("merge: %v", err)
	}

	f, err := po.ParseFile(catalog)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.HeaderField("Language"); got != "de" {
		t.Fatalf("Language header = %q, want de", got)
	}
	if e := f.Find("", "Hello"); e == nil || e.MsgStr != "Hallo" {
		t.Fatalf("Hello entry = %#v, want Hallo", e)
	}
}

func TestTranslateCommand(t *testing.T) {
	root, catalog := writeProject(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		user := req.Messages[1].Content
		if !strings.HasPrefix(user, "Translate to German:\n\n") {
			t.Errorf("user prompt = %q", user)
		}
		reply := "```po\nmsgid \"Hello\"\nmsgstr \"Hallo\"\n```"
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": reply}}},
		})
	}))
	defer srv.Close()

	_, err := execute(t, "", "translate", "--root", root, "--base-url", srv.URL, "--api-key", "sk-test", "--sequential", "--verify")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}

	f, err := po.ParseFile(catalog)
	if err != nil {
		t.Fatal(err)
	}
	if e := f.Find("", "Hello"); e == nil || e.MsgStr != "Hallo" {
		t.Fatalf("Hello entry = %#v, want Hallo", e)
	}
	if e := f.Find("", "Phone number"); e == nil || e.MsgStr != "Telefonnummer" {
		t.Fatalf("Phone number entry = %#v, want it untouched", e)
	}
}

func TestTranslateCommandUnusableRepliesDoNotFail(t *testing.T) {
	root, catalog := writeProject(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": "I cannot help with that."}}},
		})
	}))
	defer srv.Close()

	_, err := execute(t, "", "translate", "--root", root, "--base-url", srv.URL, "--api-key", "sk-test", "--sequential")
	if err != nil {
		t.Fatalf("translate with unusable replies: %v", err)
	}

	data, _ := os.ReadFile(catalog)
	if string(data) != deCatalog {
		t.Fatal("catalog changed although no chunk was usable")
	}
}

func TestTranslateCommandRequiresKey(t *testing.T) {
	root, catalog := writeProject(t)

	_, err := execute(t, "", "translate", "--root", root)
	if err == nil || !strings.Contains(err.Error(), "requires an API key") {
		t.Fatalf("translate without key: err = %v", err)
	}

	data, _ := os.ReadFile(catalog)
	if string(data) != deCatalog {
		t.Fatal("catalog changed although no request could be sent")
	}
}

func TestTranslateCommandDryRun(t *testing.T) {
	root, catalog := writeProject(t)

	if _, err := execute(t, "", "translate", "--root", root, "--dry-run"); err != nil {
		t.Fatalf("dry run: %v", err)
	}

	data, _ := os.ReadFile(catalog)
	if string(data) != deCatalog {
		t.Fatal("dry run modified the catalog")
	}
}

func TestAuthLoginStoresKey(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)

	if err := authLogin(strings.NewReader("sk-groq-1234567890\n"), "groq", ""); err != nil {
		t.Fatalf("authLogin: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(data, "potrans", "auth.json"))
	if err != nil {
		t.Fatalf("reading auth.json: %v", err)
	}
	if !strings.Contains(string(raw), "sk-groq-1234567890") {
		t.Fatalf("auth.json = %s, want stored key", raw)
	}

	if err := authLogin(strings.NewReader("\n"), "openai", ""); err == nil {
		t.Fatal("empty key without an existing one succeeded")
	}
}
