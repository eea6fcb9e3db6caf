// Package compile checks that a rewritten catalog loads in a gettext
// runtime and that its translations resolve.
package compile

import (
	"fmt"
	"os"

	"github.com/leonelquinteros/gotext"

	po "github.com/minios-linux/potrans/pofile"
)

// Report summarizes a verification run.
type Report struct {
	// Checked is the number of translated singular entries looked up.
	Checked int
	// Resolved entries came back from the runtime with their msgstr.
	Resolved int
	// Unresolved lists the msgids that did not.
	Unresolved []string
}

// OK reports whether every checked entry resolved.
func (r Report) OK() bool { return r.Resolved == r.Checked }

// Verify loads the catalog at path through gotext and looks up every
// translated, non-fuzzy singular entry.
func Verify(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := po.ParseString(string(data))
	if err != nil {
		return Report{}, fmt.Errorf("verifying %s: %w", path, err)
	}

	rt := gotext.NewPo()
	rt.Parse(data)

	var rep Report
	for _, e := range f.Entries {
		if e.Obsolete || e.MsgIDPlural != "" || !e.IsTranslated() {
			continue
		}
		rep.Checked++

		var got string
		if e.MsgCtxt != "" {
			got = rt.GetC(e.MsgID, e.MsgCtxt)
		} else {
			got = rt.Get(e.MsgID)
		}
		if got == e.MsgStr {
			rep.Resolved++
		} else {
			rep.Unresolved = append(rep.Unresolved, e.MsgID)
		}
	}
	return rep, nil
}
