// Package pofile implements reading and writing of PO files
// following the GNU gettext format specification.
package pofile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrParse is matched by every error returned for a malformed catalog.
var ErrParse = errors.New("malformed catalog")

// ParseError describes where a catalog stopped making sense.
type ParseError struct {
	// Path is the file name, empty when parsing from a reader.
	Path string
	// Line is the 1-based line number.
	Line int
	// Msg describes the problem.
	Msg string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Unwrap lets errors.Is(err, ErrParse) match.
func (e *ParseError) Unwrap() error { return ErrParse }

// Entry represents a single translatable message in a PO file.
type Entry struct {
	// TranslatorComments are lines starting with "# " (translator comments).
	TranslatorComments []string
	// ExtractedComments are lines starting with "#." (extracted/automatic comments).
	ExtractedComments []string
	// References are source code locations, lines starting with "#:".
	References []string
	// Flags are format flags, lines starting with "#,".
	Flags []string
	// PreviousMsgID stores the previous msgid for fuzzy entries, lines starting with "#|".
	PreviousMsgID string

	// MsgCtxt is the message context (msgctxt).
	MsgCtxt string
	// MsgID is the untranslated string.
	MsgID string
	// MsgIDPlural is the untranslated plural string.
	MsgIDPlural string
	// MsgStr is the translated string (singular or the only form).
	MsgStr string
	// MsgStrPlural maps plural form index to translated string.
	MsgStrPlural map[int]string

	// Obsolete marks entries prefixed with "#~".
	Obsolete bool
}

// Key identifies an entry inside a catalog. Two entries with the same
// msgid but different contexts are distinct messages.
func (e *Entry) Key() string {
	if e.MsgCtxt == "" {
		return e.MsgID
	}
	return e.MsgCtxt + "\x04" + e.MsgID
}

// IsHeader reports whether e is the metadata pseudo-entry.
func (e *Entry) IsHeader() bool {
	return e.MsgID == "" && e.MsgCtxt == "" && !e.Obsolete
}

// IsTranslated returns true if the entry has a non-empty, non-fuzzy translation.
func (e *Entry) IsTranslated() bool {
	if e.MsgID == "" {
		return false // header entry
	}
	if e.IsFuzzy() {
		return false
	}
	if e.MsgIDPlural != "" {
		for _, v := range e.MsgStrPlural {
			if v == "" {
				return false
			}
		}
		return len(e.MsgStrPlural) > 0
	}
	return e.MsgStr != ""
}

// IsFuzzy returns true if the entry is marked fuzzy.
func (e *Entry) IsFuzzy() bool {
	return e.HasFlag("fuzzy")
}

// SetFuzzy adds or removes the fuzzy flag.
func (e *Entry) SetFuzzy(fuzzy bool) {
	if fuzzy && !e.IsFuzzy() {
		e.Flags = append(e.Flags, "fuzzy")
	} else if !fuzzy {
		filtered := make([]string, 0, len(e.Flags))
		for _, f := range e.Flags {
			if f != "fuzzy" {
				filtered = append(filtered, f)
			}
		}
		e.Flags = filtered
	}
}

// HasFlag checks if a specific flag is present.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ClearTranslation empties msgstr and every plural form.
func (e *Entry) ClearTranslation() {
	e.MsgStr = ""
	if len(e.MsgStrPlural) > 0 {
		cleared := make(map[int]string, len(e.MsgStrPlural))
		for idx := range e.MsgStrPlural {
			cleared[idx] = ""
		}
		e.MsgStrPlural = cleared
	}
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	c.TranslatorComments = cloneStrings(e.TranslatorComments)
	c.ExtractedComments = cloneStrings(e.ExtractedComments)
	c.References = cloneStrings(e.References)
	c.Flags = cloneStrings(e.Flags)
	if e.MsgStrPlural != nil {
		c.MsgStrPlural = make(map[int]string, len(e.MsgStrPlural))
		for k, v := range e.MsgStrPlural {
			c.MsgStrPlural[k] = v
		}
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// File represents a parsed PO file.
type File struct {
	// Header is the metadata entry (msgid ""). Nil means no header is written.
	Header *Entry
	// Entries are the translatable message entries.
	Entries []*Entry
}

// NewFile creates a new empty PO file with a blank header.
func NewFile() *File {
	return &File{
		Header:  &Entry{},
		Entries: make([]*Entry, 0),
	}
}

// MetaField is one "Key: value" line of the header.
type MetaField struct {
	Key   string
	Value string
}

// Metadata returns the header fields in file order.
func (f *File) Metadata() []MetaField {
	if f.Header == nil {
		return nil
	}
	var fields []MetaField
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			fields = append(fields, MetaField{
				Key:   strings.TrimSpace(line[:idx]),
				Value: strings.TrimSpace(line[idx+1:]),
			})
		}
	}
	return fields
}

// HeaderField returns a header field value by name.
func (f *File) HeaderField(name string) string {
	for _, field := range f.Metadata() {
		if strings.EqualFold(field.Key, name) {
			return field.Value
		}
	}
	return ""
}

// Find returns the live entry with the given context and msgid.
func (f *File) Find(msgctxt, msgid string) *Entry {
	for _, e := range f.Entries {
		if e.MsgID == msgid && e.MsgCtxt == msgctxt && !e.Obsolete {
			return e
		}
	}
	return nil
}

// Stats returns translation statistics.
func (f *File) Stats() (total, translated, fuzzy, untranslated int) {
	for _, e := range f.Entries {
		if e.MsgID == "" || e.Obsolete {
			continue
		}
		total++
		if e.IsFuzzy() {
			fuzzy++
		} else if e.IsTranslated() {
			translated++
		} else {
			untranslated++
		}
	}
	return
}

// field names tracked for continuation lines
const (
	fieldNone = iota
	fieldCtxt
	fieldID
	fieldIDPlural
	fieldStr
	fieldStrPlural
)

// Parse reads a PO file from a reader.
func Parse(r io.Reader) (*File, error) {
	return parse(r, "")
}

// ParseString parses catalog text.
func ParseString(s string) (*File, error) {
	return parse(strings.NewReader(s), "")
}

// ParseFile reads a PO file from disk.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, path)
}

func parse(r io.Reader, path string) (*File, error) {
	f := NewFile()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var current *Entry
	var hasMsgID bool
	lastField := fieldNone
	pluralIdx := 0
	lineNum := 0

	fail := func(format string, args ...any) error {
		return &ParseError{Path: path, Line: lineNum, Msg: fmt.Sprintf(format, args...)}
	}

	flush := func() {
		if current == nil || !hasMsgID {
			// Comment-only blocks belong to the next entry.
			return
		}
		if current.IsHeader() {
			f.Header = current
		} else {
			f.Entries = append(f.Entries, current)
		}
		current = nil
		hasMsgID = false
		lastField = fieldNone
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimLeft(scanner.Text(), " \t")
		line = strings.TrimRight(line, "\r")

		// Empty line separates entries
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		obsoleteLine := false
		if strings.HasPrefix(line, "#~") {
			obsoleteLine = true
			line = strings.TrimLeft(line[2:], " ")
			if line == "" {
				continue
			}
			// "#~|", "#~," and friends are comments of the obsolete entry.
			if strings.ContainsRune("|,:.", rune(line[0])) {
				line = "#" + line
			}
		}
		isComment := strings.HasPrefix(line, "#")
		keyword, rest, _ := strings.Cut(line, " ")

		// Entries that are not separated by a blank line.
		if hasMsgID && ((isComment && lastField >= fieldStr) || keyword == "msgid" || keyword == "msgctxt") {
			flush()
		}
		if current == nil {
			current = &Entry{}
		}
		if obsoleteLine {
			current.Obsolete = true
		}

		// Comment lines
		if isComment {
			switch {
			case strings.HasPrefix(line, "#:"):
				current.References = append(current.References, strings.TrimSpace(line[2:]))
			case strings.HasPrefix(line, "#,"):
				for _, flag := range strings.Split(line[2:], ",") {
					if flag = strings.TrimSpace(flag); flag != "" {
						current.Flags = append(current.Flags, flag)
					}
				}
			case strings.HasPrefix(line, "#."):
				current.ExtractedComments = append(current.ExtractedComments, strings.TrimSpace(line[2:]))
			case strings.HasPrefix(line, "#|"):
				prev := strings.TrimSpace(line[2:])
				if strings.HasPrefix(prev, "msgid ") {
					v, err := unquote(strings.TrimPrefix(prev, "msgid "))
					if err != nil {
						return nil, fail("previous msgid: %v", err)
					}
					current.PreviousMsgID = v
				}
			default:
				comment := line[1:]
				comment = strings.TrimPrefix(comment, " ")
				current.TranslatorComments = append(current.TranslatorComments, comment)
			}
			continue
		}

		switch {
		case keyword == "msgctxt":
			v, err := unquote(rest)
			if err != nil {
				return nil, fail("msgctxt: %v", err)
			}
			current.MsgCtxt = v
			lastField = fieldCtxt

		case keyword == "msgid_plural":
			if !hasMsgID {
				return nil, fail("msgid_plural without msgid")
			}
			v, err := unquote(rest)
			if err != nil {
				return nil, fail("msgid_plural: %v", err)
			}
			current.MsgIDPlural = v
			lastField = fieldIDPlural

		case keyword == "msgid":
			v, err := unquote(rest)
			if err != nil {
				return nil, fail("msgid: %v", err)
			}
			current.MsgID = v
			hasMsgID = true
			lastField = fieldID

		case strings.HasPrefix(keyword, "msgstr["):
			if !hasMsgID {
				return nil, fail("msgstr without msgid")
			}
			idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(keyword, "msgstr["), "]"))
			if err != nil || !strings.HasSuffix(keyword, "]") || idx < 0 {
				return nil, fail("invalid msgstr index: %s", keyword)
			}
			v, err := unquote(rest)
			if err != nil {
				return nil, fail("%s: %v", keyword, err)
			}
			if current.MsgStrPlural == nil {
				current.MsgStrPlural = make(map[int]string)
			}
			current.MsgStrPlural[idx] = v
			pluralIdx = idx
			lastField = fieldStrPlural

		case keyword == "msgstr":
			if !hasMsgID {
				return nil, fail("msgstr without msgid")
			}
			v, err := unquote(rest)
			if err != nil {
				return nil, fail("msgstr: %v", err)
			}
			current.MsgStr = v
			lastField = fieldStr

		case strings.HasPrefix(line, `"`):
			v, err := unquote(line)
			if err != nil {
				return nil, fail("%v", err)
			}
			switch lastField {
			case fieldCtxt:
				current.MsgCtxt += v
			case fieldID:
				current.MsgID += v
			case fieldIDPlural:
				current.MsgIDPlural += v
			case fieldStr:
				current.MsgStr += v
			case fieldStrPlural:
				current.MsgStrPlural[pluralIdx] += v
			default:
				return nil, fail("string continuation without a field")
			}

		default:
			return nil, fail("unexpected line %q", truncate(line, 40))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PO file: %w", err)
	}
	if current != nil && !hasMsgID && lastField == fieldNone && current.MsgCtxt == "" {
		// Trailing comments with no entry are dropped.
		current = nil
	}
	if current != nil && !hasMsgID {
		return nil, fail("entry without msgid")
	}

	// Flush last entry
	flush()

	return f, nil
}

// Write writes the PO file to a writer.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	first := true

	if f.Header != nil {
		writeEntry(bw, f.Header)
		first = false
	}

	for _, e := range f.Entries {
		if !first {
			fmt.Fprintln(bw)
		}
		writeEntry(bw, e)
		first = false
	}

	return bw.Flush()
}

// String serializes the file.
func (f *File) String() string {
	var buf bytes.Buffer
	_ = f.Write(&buf)
	return buf.String()
}

// WriteFile writes the PO file to disk.
func (f *File) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeEntry(w *bufio.Writer, e *Entry) {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}

	for _, c := range e.TranslatorComments {
		if c == "" {
			fmt.Fprintln(w, "#")
			continue
		}
		fmt.Fprintf(w, "# %s\n", c)
	}
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}
	for _, ref := range e.References {
		fmt.Fprintf(w, "#: %s\n", ref)
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	if e.PreviousMsgID != "" {
		if e.Obsolete {
			fmt.Fprintf(w, "#~| msgid %s\n", quote(e.PreviousMsgID))
		} else {
			fmt.Fprintf(w, "#| msgid %s\n", quote(e.PreviousMsgID))
		}
	}

	if e.MsgCtxt != "" {
		writeQuotedField(w, prefix, "msgctxt", e.MsgCtxt)
	}
	writeQuotedField(w, prefix, "msgid", e.MsgID)
	if e.MsgIDPlural != "" {
		writeQuotedField(w, prefix, "msgid_plural", e.MsgIDPlural)
	}

	if e.MsgIDPlural != "" && len(e.MsgStrPlural) > 0 {
		indices := make([]int, 0, len(e.MsgStrPlural))
		for idx := range e.MsgStrPlural {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			writeQuotedField(w, prefix, fmt.Sprintf("msgstr[%d]", idx), e.MsgStrPlural[idx])
		}
	} else {
		writeQuotedField(w, prefix, "msgstr", e.MsgStr)
	}
}

// writeQuotedField writes a PO field with proper multiline quoting.
func writeQuotedField(w *bufio.Writer, prefix, field, value string) {
	if !strings.Contains(strings.TrimSuffix(value, "\n"), "\n") {
		fmt.Fprintf(w, "%s%s %s\n", prefix, field, quote(value))
		return
	}

	// Multiline: use empty string on first line
	fmt.Fprintf(w, "%s%s \"\"\n", prefix, field)
	parts := strings.Split(value, "\n")
	for i, part := range parts {
		if i < len(parts)-1 {
			fmt.Fprintf(w, "%s%s\n", prefix, quote(part+"\n"))
		} else if part != "" {
			fmt.Fprintf(w, "%s%s\n", prefix, quote(part))
		}
	}
}

// quote produces a PO-style quoted string. Control characters without a
// named C escape are written in octal.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if esc, ok := escapes[c]; ok {
			b.WriteByte('\\')
			b.WriteByte(esc)
			continue
		}
		if c < 0x20 || c == 0x7f {
			fmt.Fprintf(&b, "\\%03o", c)
			continue
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// escapes maps bytes to their C escape letter.
var escapes = map[byte]byte{
	'\a': 'a', '\b': 'b', '\f': 'f', '\n': 'n', '\r': 'r', '\t': 't', '\v': 'v',
	'\\': '\\', '"': '"',
}

// unescapes is the inverse of escapes, plus the escapes C accepts on input
// only.
var unescapes = map[byte]byte{
	'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v',
	'\\': '\\', '"': '"', '\'': '\'', '?': '?',
}

// unquote removes PO-style quoting and decodes C escape sequences,
// including octal (\ooo) and hex (\xhh) forms.
func unquote(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("expected quoted string, got %q", truncate(s, 40))
	}
	s = s[1 : len(s)-1]

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			return "", fmt.Errorf("unescaped quote in %q", truncate(s, 40))
		}
		if c != '\\' {
			result.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("trailing backslash in %q", truncate(s, 40))
		}
		next := s[i+1]
		switch {
		case unescapes[next] != 0:
			result.WriteByte(unescapes[next])
			i++
		case next >= '0' && next <= '7':
			v, n := 0, 0
			for n < 3 && i+1+n < len(s) && s[i+1+n] >= '0' && s[i+1+n] <= '7' {
				v = v*8 + int(s[i+1+n]-'0')
				n++
			}
			if v > 0xff {
				return "", fmt.Errorf("octal escape out of range in %q", truncate(s, 40))
			}
			result.WriteByte(byte(v))
			i += n
		case next == 'x':
			v, n := 0, 0
			for n < 2 && i+2+n < len(s) && isHex(s[i+2+n]) {
				v = v*16 + hexVal(s[i+2+n])
				n++
			}
			if n == 0 {
				return "", fmt.Errorf("empty hex escape in %q", truncate(s, 40))
			}
			result.WriteByte(byte(v))
			i += 1 + n
		default:
			return "", fmt.Errorf("invalid escape \\%c in %q", next, truncate(s, 40))
		}
	}
	return result.String(), nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
