// Package reassemble turns the stream of chunk results into one catalog
// fragment: it drops duplicate deliveries, extracts the fenced payload of
// each response and joins the payloads.
//
// An Assembler is meant to be owned by a single consumer goroutine and is
// not safe for concurrent use.
package reassemble

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/minios-linux/potrans/codeblock"
	po "github.com/minios-linux/potrans/pofile"
	"github.com/minios-linux/potrans/translate"
)

// Stats counts what happened to the results seen so far.
type Stats struct {
	// Accepted results contributed a payload.
	Accepted int
	// Duplicates repeated an identity that had already contributed.
	Duplicates int
	// Failed results carried a request error.
	Failed int
	// Missing results had no fenced code block.
	Missing int
	// Invalid results had a payload that is not a catalog fragment.
	Invalid int
}

// Gaps is the number of results that contributed nothing for a reason
// other than duplication.
func (s Stats) Gaps() int { return s.Failed + s.Missing + s.Invalid }

type part struct {
	index   int
	payload string
}

// Assembler accumulates payloads. Only an accepted result marks its
// identity as seen: a failed, missing or invalid result leaves it free, so
// a later delivery of the same chunk can still contribute.
type Assembler struct {
	// Ordered joins payloads by chunk index instead of arrival order.
	Ordered bool
	// Keyword anchors payload extraction; see codeblock.Extract.
	Keyword string
	// Log receives one event per discarded result.
	Log zerolog.Logger

	seen  map[string]struct{}
	parts []part
	stats Stats
}

// New returns an empty assembler.
func New(ordered bool, log zerolog.Logger) *Assembler {
	return &Assembler{Ordered: ordered, Log: log}
}

// Add consumes one result and reports whether it contributed a payload.
func (a *Assembler) Add(r translate.Result) bool {
	if a.seen == nil {
		a.seen = make(map[string]struct{})
	}

	if r.Err != nil {
		a.stats.Failed++
		a.Log.Warn().Err(r.Err).Int("chunk", r.Chunk.Index).Msg("Chunk not translated")
		return false
	}

	id := r.Identity()
	if _, dup := a.seen[id]; dup {
		a.stats.Duplicates++
		a.Log.Debug().Int("chunk", r.Chunk.Index).Msg("Dropping duplicate result")
		return false
	}

	payload := codeblock.Extract(r.Raw, a.Keyword)
	if payload == "" {
		a.stats.Missing++
		a.Log.Warn().Int("chunk", r.Chunk.Index).Msg("No code block in response")
		return false
	}
	if _, err := po.ParseString(payload + "\n"); err != nil {
		a.stats.Invalid++
		a.Log.Warn().Err(err).Int("chunk", r.Chunk.Index).Msg("Response is not a valid catalog fragment")
		return false
	}

	a.seen[id] = struct{}{}
	a.parts = append(a.parts, part{index: r.Chunk.Index, payload: payload})
	a.stats.Accepted++
	return true
}

// Drain consumes results until ch is closed and returns the joined text.
func (a *Assembler) Drain(ch <-chan translate.Result) string {
	for r := range ch {
		a.Add(r)
	}
	return a.Text()
}

// Text joins the accepted payloads with a blank line.
func (a *Assembler) Text() string {
	parts := a.parts
	if a.Ordered {
		parts = append([]part(nil), a.parts...)
		sort.SliceStable(parts, func(i, j int) bool { return parts[i].index < parts[j].index })
	}

	payloads := make([]string, len(parts))
	for i, p := range parts {
		payloads[i] = p.payload
	}
	return strings.Join(payloads, "\n\n")
}

// Stats returns the counters.
func (a *Assembler) Stats() Stats { return a.stats }
