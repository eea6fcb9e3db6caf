// Package merge recombines the already-translated part of a catalog with
// freshly translated entries and writes the result over the target file.
package merge

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"

	po "github.com/minios-linux/potrans/pofile"
)

// Report counts what happened to the fresh and pending entries.
type Report struct {
	// Applied pending entries received a translation from the fresh text.
	Applied int
	// Restored pending entries were missing from the fresh text and were
	// kept untranslated.
	Restored int
	// Dropped fresh entries were not requested, duplicated an earlier key,
	// or were header entries.
	Dropped int
}

// Catalogs builds the merged catalog in memory: the translated entries
// followed by the fresh ones, under a copy of target's header.
//
// When pending is nil every fresh entry is appended as returned, except
// header entries and keys already present. When pending is given the
// fresh text only supplies translations: each pending entry is emitted in
// its original order with the fresh msgstr applied, pending entries
// missing from the fresh text stay untranslated, and fresh entries nobody
// asked for are dropped.
func Catalogs(translated, fresh, pending, target *po.File) (*po.File, Report) {
	var rep Report
	out := po.NewFile()
	out.Header = nil
	if target.Header != nil {
		out.Header = target.Header.Clone()
	}

	seen := make(map[string]bool)
	for _, e := range translated.Entries {
		if e.IsHeader() {
			continue
		}
		out.Entries = append(out.Entries, e.Clone())
		if !e.Obsolete {
			seen[e.Key()] = true
		}
	}

	if pending == nil {
		for _, e := range fresh.Entries {
			if e.IsHeader() || (!e.Obsolete && seen[e.Key()]) {
				rep.Dropped++
				continue
			}
			out.Entries = append(out.Entries, e.Clone())
			if !e.Obsolete {
				seen[e.Key()] = true
			}
		}
		return out, rep
	}

	byKey := make(map[string]*po.Entry)
	for _, e := range fresh.Entries {
		if e.IsHeader() || e.Obsolete {
			rep.Dropped++
			continue
		}
		if _, dup := byKey[e.Key()]; dup {
			rep.Dropped++
			continue
		}
		byKey[e.Key()] = e
	}

	used := 0
	for _, p := range pending.Entries {
		key := p.Key()
		if p.IsHeader() || seen[key] {
			continue
		}
		seen[key] = true

		entry := p.Clone()
		if f, ok := byKey[key]; ok {
			applyTranslation(entry, f)
			used++
			rep.Applied++
		} else {
			rep.Restored++
		}
		out.Entries = append(out.Entries, entry)
	}
	rep.Dropped += len(byKey) - used

	return out, rep
}

// applyTranslation copies f's msgstr forms onto e.
func applyTranslation(e, f *po.Entry) {
	e.MsgStr = f.MsgStr
	if e.MsgIDPlural == "" {
		return
	}
	e.MsgStrPlural = make(map[int]string, len(f.MsgStrPlural))
	for i, s := range f.MsgStrPlural {
		e.MsgStrPlural[i] = s
	}
}

// Fragments parses the translated and fresh catalog texts, merges them
// under the header of the catalog at targetPath and overwrites that file.
func Fragments(translatedText, freshText, targetPath string) (Report, error) {
	return merge(translatedText, freshText, nil, targetPath)
}

// FragmentsWithPending is Fragments with the pending text that was sent
// for translation, so entries the model skipped are restored and entries
// it invented are dropped.
func FragmentsWithPending(translatedText, freshText, pendingText, targetPath string) (Report, error) {
	return merge(translatedText, freshText, &pendingText, targetPath)
}

func merge(translatedText, freshText string, pendingText *string, targetPath string) (Report, error) {
	translated, err := po.ParseString(translatedText)
	if err != nil {
		return Report{}, fmt.Errorf("parsing translated entries: %w", err)
	}
	fresh, err := po.ParseString(freshText)
	if err != nil {
		return Report{}, fmt.Errorf("parsing fresh entries: %w", err)
	}
	var pending *po.File
	if pendingText != nil {
		if pending, err = po.ParseString(*pendingText); err != nil {
			return Report{}, fmt.Errorf("parsing pending entries: %w", err)
		}
	}
	target, err := po.ParseFile(targetPath)
	if err != nil {
		return Report{}, fmt.Errorf("reading target: %w", err)
	}

	merged, rep := Catalogs(translated, fresh, pending, target)
	if err := WriteFile(merged, targetPath); err != nil {
		return rep, err
	}
	return rep, nil
}

// WriteFile serializes f and atomically replaces path with it.
func WriteFile(f *po.File, path string) error {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("serializing %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
