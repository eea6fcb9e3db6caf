package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/potrans/chunk"
	po "github.com/minios-linux/potrans/pofile"
	"github.com/minios-linux/potrans/translate"
)

const catalog = `msgid ""
msgstr ""
"Language: de\n"
"Content-Type: text/plain; charset=UTF-8\n"

#: app.py:1
msgid "Phone number"
msgstr "Telefonnummer"

#: app.py:2
msgid "Hello"
msgstr ""

#: app.py:3
msgid "Goodbye"
msgstr ""

#: app.py:4
#, fuzzy
msgid "Save"
msgstr "Speicher"
`

const complete = `msgid ""
msgstr ""
"Language: fr\n"

msgid "Hello"
msgstr "Bonjour"
`

func writeCatalog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// echoTranslator answers every chunk with the entries it received, each
// msgstr set to prefix+msgid, inside a fenced block.
func echoTranslator(prefix string) translate.CompleterFunc {
	return func(ctx context.Context, req translate.Request) (string, error) {
		_, body, _ := strings.Cut(req.Messages[1].Content, "\n\n")
		f, err := po.ParseString(body)
		if err != nil {
			return "", err
		}
		f.Header = nil
		for _, e := range f.Entries {
			e.MsgStr = prefix + e.MsgID
		}
		return "Sure:\n```po\n" + f.String() + "```\n", nil
	}
}

func newRunner(c translate.Completer) *Runner {
	return &Runner{
		Client:   translate.NewClient(translate.Config{MaxConcurrent: 2}, translate.WithCompleter(c)),
		Splitter: &chunk.Splitter{Size: 60, Length: chunk.RuneCounter},
		Mode:     translate.ModeConcurrent,
		Log:      zerolog.Nop(),
	}
}

func TestRunTranslatesPendingEntries(t *testing.T) {
	path := writeCatalog(t, "de.po", catalog)
	r := newRunner(echoTranslator("DE:"))
	r.Verify = true

	var events []Event
	r.OnProgress = func(p Progress) { events = append(events, p.Event) }

	sum := r.Run(context.Background(), []Target{{Locale: "de", Language: "German", Path: path}})
	require.NoError(t, sum.Err())
	require.Len(t, sum.Results, 1)

	res := sum.Results[0]
	assert.Equal(t, 3, res.Pending)
	assert.Equal(t, 3, res.Merge.Applied)
	assert.Zero(t, res.Merge.Restored)
	assert.Zero(t, res.Assembly.Gaps())
	require.NotNil(t, res.Verify)
	assert.True(t, res.Verify.OK())

	assert.Equal(t, EventTranslating, events[0])
	assert.Equal(t, EventDone, events[len(events)-1])
	assert.Contains(t, events, EventChunks)

	f, err := po.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "de", f.HeaderField("Language"))
	assert.Equal(t, "Telefonnummer", f.Find("", "Phone number").MsgStr)
	assert.Equal(t, "DE:Hello", f.Find("", "Hello").MsgStr)
	assert.Equal(t, "DE:Goodbye", f.Find("", "Goodbye").MsgStr)

	save := f.Find("", "Save")
	assert.Equal(t, "DE:Save", save.MsgStr)
	assert.False(t, save.IsFuzzy())
	assert.Equal(t, []string{"app.py:4"}, save.References)
}

func TestRunSkipsCompleteCatalog(t *testing.T) {
	path := writeCatalog(t, "fr.po", complete)
	var calls atomic.Int32
	r := newRunner(translate.CompleterFunc(func(ctx context.Context, req translate.Request) (string, error) {
		calls.Add(1)
		return "", nil
	}))

	var got Progress
	r.OnProgress = func(p Progress) { got = p }

	sum := r.Run(context.Background(), []Target{{Locale: "fr", Language: "French", Path: path}})
	require.NoError(t, sum.Err())
	assert.True(t, sum.Results[0].Skipped)
	assert.Equal(t, EventSkipped, got.Event)
	assert.Zero(t, calls.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, complete, string(data))
}

func TestRunContinuesAfterFailedLocale(t *testing.T) {
	broken := writeCatalog(t, "broken.po", "msgid \"unterminated\n")
	good := writeCatalog(t, "de.po", catalog)
	r := newRunner(echoTranslator("X:"))

	var failed []string
	r.OnProgress = func(p Progress) {
		if p.Event == EventFailed {
			failed = append(failed, p.Target.Locale)
		}
	}

	sum := r.Run(context.Background(), []Target{
		{Locale: "xx", Language: "Broken", Path: broken},
		{Locale: "de", Language: "German", Path: good},
	})

	require.Len(t, sum.Results, 2)
	assert.ErrorIs(t, sum.Results[0].Err, po.ErrParse)
	assert.NoError(t, sum.Results[1].Err)
	assert.Equal(t, []string{"xx"}, failed)
	assert.Len(t, sum.Failed(), 1)
	assert.ErrorIs(t, sum.Err(), po.ErrParse)

	f, err := po.ParseFile(good)
	require.NoError(t, err)
	assert.Equal(t, "X:Hello", f.Find("", "Hello").MsgStr)
}

func TestRunRestoresEntriesOfFailedChunks(t *testing.T) {
	path := writeCatalog(t, "de.po", catalog)
	echo := echoTranslator("DE:")
	r := newRunner(translate.CompleterFunc(func(ctx context.Context, req translate.Request) (string, error) {
		if strings.Contains(req.Messages[1].Content, `"Goodbye"`) {
			return "", errors.New("boom")
		}
		return echo(ctx, req)
	}))

	sum := r.Run(context.Background(), []Target{{Locale: "de", Language: "German", Path: path}})
	require.NoError(t, sum.Err())

	res := sum.Results[0]
	assert.Equal(t, 1, res.Assembly.Failed)
	assert.Equal(t, 1, res.Merge.Restored)

	f, err := po.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DE:Hello", f.Find("", "Hello").MsgStr)
	goodbye := f.Find("", "Goodbye")
	require.NotNil(t, goodbye)
	assert.Empty(t, goodbye.MsgStr)
}

func TestRunLeavesCatalogWhenNothingTranslated(t *testing.T) {
	path := writeCatalog(t, "de.po", catalog)
	r := newRunner(translate.CompleterFunc(func(ctx context.Context, req translate.Request) (string, error) {
		return "I cannot help with that.", nil
	}))

	var events []Event
	r.OnProgress = func(p Progress) { events = append(events, p.Event) }

	sum := r.Run(context.Background(), []Target{{Locale: "de", Language: "German", Path: path}})
	require.Len(t, sum.Results, 1)
	require.NoError(t, sum.Err())
	assert.Empty(t, sum.Failed())

	res := sum.Results[0]
	assert.True(t, res.Untranslated)
	assert.Equal(t, res.Chunks, res.Assembly.Missing)
	assert.Len(t, sum.Untranslated(), 1)
	assert.Equal(t, EventUntranslated, events[len(events)-1])
	assert.NotContains(t, events, EventFailed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, catalog, string(data))
}

func TestRunDryRunSendsNothing(t *testing.T) {
	path := writeCatalog(t, "de.po", catalog)
	r := &Runner{
		Splitter: &chunk.Splitter{Size: 60, Length: chunk.RuneCounter},
		DryRun:   true,
		Log:      zerolog.Nop(),
	}

	sum := r.Run(context.Background(), []Target{{Locale: "de", Language: "German", Path: path}})
	require.NoError(t, sum.Err())
	res := sum.Results[0]
	assert.Equal(t, 3, res.Pending)
	assert.GreaterOrEqual(t, res.Chunks, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, catalog, string(data))
}

func TestRunCancelled(t *testing.T) {
	path := writeCatalog(t, "de.po", catalog)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := newRunner(echoTranslator("DE:")).Run(ctx, []Target{{Locale: "de", Language: "German", Path: path}})
	assert.ErrorIs(t, sum.Err(), context.Canceled)
}
