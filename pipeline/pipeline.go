// Package pipeline runs the split, chunk, translate, reassemble and merge
// steps for a list of catalogs, one locale at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/minios-linux/potrans/chunk"
	"github.com/minios-linux/potrans/compile"
	"github.com/minios-linux/potrans/merge"
	po "github.com/minios-linux/potrans/pofile"
	"github.com/minios-linux/potrans/reassemble"
	"github.com/minios-linux/potrans/split"
	"github.com/minios-linux/potrans/translate"
)

// Target is one catalog to translate.
type Target struct {
	// Locale is the gettext locale name, used in logs.
	Locale string
	// Language is the name sent in the prompt ("German", "Brazilian Portuguese").
	Language string
	// Path is the catalog file, rewritten in place.
	Path string
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

// Event names a progress step.
type Event string

const (
	EventSkipped     Event = "skipped"
	EventTranslating Event = "translating"
	EventChunks      Event = "chunks"
	EventDone        Event = "done"
	EventFailed      Event = "failed"

	// EventUntranslated means no chunk came back usable; the catalog was
	// left as it was.
	EventUntranslated Event = "untranslated"
)

// Progress is passed to Runner.OnProgress.
type Progress struct {
	Event  Event
	Target Target
	// Done and Total count chunk results for EventChunks, and pending
	// entries otherwise.
	Done, Total int
	Err         error
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// LocaleResult describes what happened to one target.
type LocaleResult struct {
	Target Target
	// Skipped is set when the catalog had nothing pending.
	Skipped bool
	// Pending is the number of entries that needed a translation.
	Pending int
	// Chunks is the number of chunks the pending entries were split into.
	Chunks int
	// Assembly counts accepted, duplicate and unusable chunk results.
	Assembly reassemble.Stats
	// Merge reports how the fragments were combined.
	Merge merge.Report
	// Verify is set when verification ran and succeeded in loading the file.
	Verify *compile.Report
	// Untranslated is set when every chunk failed or came back unusable.
	// The catalog is not rewritten and the locale is not counted as failed.
	Untranslated bool
	// Err is set when the locale failed outright.
	Err error
}

// Summary collects the results of a run in target order.
type Summary struct {
	Results []LocaleResult
}

// Failed returns the results that carry an error.
func (s Summary) Failed() []LocaleResult {
	var out []LocaleResult
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Untranslated returns the results for which no chunk produced a usable
// translation.
func (s Summary) Untranslated() []LocaleResult {
	var out []LocaleResult
	for _, r := range s.Results {
		if r.Untranslated {
			out = append(out, r)
		}
	}
	return out
}

// Err joins the per-locale errors, or returns nil when every locale
// succeeded or was skipped.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", r.Target.Locale, r.Err))
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// Runner holds everything a run needs. Client may be nil in dry-run mode.
type Runner struct {
	Client   *translate.Client
	Splitter *chunk.Splitter
	Mode     translate.Mode
	// Ordered joins chunk payloads by chunk index instead of arrival order.
	Ordered bool
	// Keyword anchors code block extraction in each response.
	Keyword string
	// Verify loads every rewritten catalog through gotext.
	Verify bool
	// DryRun stops after chunking and sends no requests.
	DryRun bool
	Log    zerolog.Logger
	// OnProgress, when set, is called from the Run goroutine.
	OnProgress func(Progress)
}

// Run processes targets in order. A failing locale is recorded and the next
// one continues; Run itself never fails.
func (r *Runner) Run(ctx context.Context, targets []Target) Summary {
	var sum Summary
	for _, t := range targets {
		res := r.runOne(ctx, t)
		if res.Err != nil {
			r.Log.Error().Err(res.Err).Str("locale", t.Locale).Msg("Translation failed")
			r.progress(Progress{Event: EventFailed, Target: t, Total: res.Pending, Err: res.Err})
		}
		sum.Results = append(sum.Results, res)
	}
	return sum
}

func (r *Runner) progress(p Progress) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

func (r *Runner) runOne(ctx context.Context, t Target) LocaleResult {
	res := LocaleResult{Target: t}
	log := r.Log.With().Str("locale", t.Locale).Logger()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	f, err := po.ParseFile(t.Path)
	if err != nil {
		res.Err = fmt.Errorf("reading catalog: %w", err)
		return res
	}
	parts := split.Catalog(f)
	translatedText, pendingText := parts.Texts()
	res.Pending = len(parts.Pending.Entries)

	if pendingText == "" {
		res.Skipped = true
		log.Info().Msgf("Skipping %s", t.Language)
		r.progress(Progress{Event: EventSkipped, Target: t})
		return res
	}

	chunks := r.Splitter.Split(pendingText)
	res.Chunks = len(chunks)
	log.Info().Int("entries", res.Pending).Int("chunks", res.Chunks).Msgf("Translating to %s", t.Language)
	r.progress(Progress{Event: EventTranslating, Target: t, Total: res.Pending})

	if r.DryRun {
		r.progress(Progress{Event: EventDone, Target: t, Total: res.Pending})
		return res
	}
	if r.Client == nil {
		res.Err = errors.New("no translation client configured")
		return res
	}

	asm := reassemble.New(r.Ordered, log)
	asm.Keyword = r.Keyword
	done := 0
	for result := range r.Client.Translate(ctx, chunks, t.Language, r.Mode) {
		asm.Add(result)
		done++
		r.progress(Progress{Event: EventChunks, Target: t, Done: done, Total: len(chunks)})
	}
	res.Assembly = asm.Stats()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if res.Assembly.Accepted == 0 {
		res.Untranslated = true
		log.Warn().Int("chunks", res.Chunks).Int("failed", res.Assembly.Failed).Int("missing", res.Assembly.Missing).Int("invalid", res.Assembly.Invalid).Msg("No chunk produced a usable translation; catalog left unchanged")
		r.progress(Progress{Event: EventUntranslated, Target: t, Total: res.Pending})
		return res
	}
	if gaps := res.Assembly.Gaps(); gaps > 0 {
		log.Warn().Int("gaps", gaps).Int("chunks", res.Chunks).Msg("Some chunks were not translated")
	}

	rep, err := merge.FragmentsWithPending(translatedText, asm.Text(), pendingText, t.Path)
	res.Merge = rep
	if err != nil {
		res.Err = fmt.Errorf("merging: %w", err)
		return res
	}
	log.Debug().Int("applied", rep.Applied).Int("restored", rep.Restored).Int("dropped", rep.Dropped).Msg("Merged")

	if r.Verify {
		r.verify(log, &res)
	}

	r.progress(Progress{Event: EventDone, Target: t, Done: rep.Applied, Total: res.Pending})
	return res
}

// verify loads the rewritten catalog. Problems are logged, never fatal.
func (r *Runner) verify(log zerolog.Logger, res *LocaleResult) {
	rep, err := compile.Verify(res.Target.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Verification failed")
		return
	}
	res.Verify = &rep
	if !rep.OK() {
		log.Warn().Int("checked", rep.Checked).Int("resolved", rep.Resolved).Strs("unresolved", rep.Unresolved).Msg("Catalog does not resolve every translation")
		return
	}
	log.Debug().Int("checked", rep.Checked).Msg("Catalog verified")
}
