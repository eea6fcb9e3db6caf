// Package split partitions a catalog into the entries that are already
// translated and the entries that still need a translation.
package split

import (
	"fmt"
	"strings"

	po "github.com/minios-linux/potrans/pofile"
)

// Result holds the two partitions of a catalog. Neither carries the
// source catalog's header; the merge step reattaches it from disk.
type Result struct {
	// Translated holds non-fuzzy entries with a complete translation,
	// plus obsolete entries which are carried through untouched.
	Translated *po.File
	// Pending holds untranslated and fuzzy entries, the latter with the
	// fuzzy flag removed and msgstr cleared.
	Pending *po.File
}

// Catalog splits f. Entries are cloned, f is not modified.
func Catalog(f *po.File) Result {
	res := Result{
		Translated: po.NewFile(),
		Pending:    po.NewFile(),
	}

	for _, e := range f.Entries {
		if e.MsgID == "" && !e.Obsolete {
			continue
		}

		switch {
		case e.Obsolete:
			res.Translated.Entries = append(res.Translated.Entries, e.Clone())
		case e.IsTranslated():
			res.Translated.Entries = append(res.Translated.Entries, e.Clone())
		default:
			pending := e.Clone()
			if pending.IsFuzzy() {
				pending.SetFuzzy(false)
				pending.ClearTranslation()
				pending.PreviousMsgID = ""
			}
			res.Pending.Entries = append(res.Pending.Entries, pending)
		}
	}

	return res
}

// Texts serializes both partitions. The translated text starts with the
// synthetic empty header the serializer always emits; the pending text has
// that header block stripped and holds entry bodies only. The pending text
// is empty when there is nothing to translate.
func (r Result) Texts() (translated, pending string) {
	translated = r.Translated.String()
	if len(r.Pending.Entries) == 0 {
		return translated, ""
	}
	return translated, stripHeader(r.Pending.String())
}

// File parses the catalog at path and returns the serialized partitions.
func File(path string) (translated, pending string, err error) {
	f, err := po.ParseFile(path)
	if err != nil {
		return "", "", fmt.Errorf("splitting %s: %w", path, err)
	}
	translated, pending = Catalog(f).Texts()
	return translated, pending, nil
}

// stripHeader drops everything up to and including the first blank line,
// which is the header block written for a fresh file.
func stripHeader(s string) string {
	if _, rest, ok := strings.Cut(s, "\n\n"); ok {
		return rest
	}
	return ""
}
