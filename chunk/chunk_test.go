package chunk

import (
	"reflect"
	"strings"
	"testing"
)

const pendingEntries = `#: frontend/forms.py:25
msgid "I accept the terms and conditions"
msgstr ""

#: frontend/forms.py:31
msgid "Your phone number is used for two-factor authentication only."
msgstr ""

#: frontend/views.py:12
msgid ""
"A very long message that goes on and on, describing in great detail "
"what the page is about and why anybody would ever want to read it."
msgstr ""
`

func texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestSplitPrefersBlankLines(t *testing.T) {
	s := &Splitter{Size: 7, Length: RuneCounter}
	got := texts(s.Split("aaaa\n\nbbbb\n\ncccc"))
	want := []string{"aaaa\n\n", "bbbb\n\n", "cccc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
}

func TestSplitReconstructsInput(t *testing.T) {
	for _, size := range []int{1, 5, 20, 64, 200, 10000} {
		s := &Splitter{Size: size, Length: RuneCounter}
		chunks := s.Split(pendingEntries)

		if joined := strings.Join(texts(chunks), ""); joined != pendingEntries {
			t.Fatalf("size %d: joined chunks differ from input", size)
		}
		for i, c := range chunks {
			if c.Index != i {
				t.Fatalf("size %d: chunk %d has index %d", size, i, c.Index)
			}
			if n := RuneCounter(c.Text); n > size {
				t.Fatalf("size %d: chunk %d has %d runes", size, i, n)
			}
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := &Splitter{Size: 40, Length: RuneCounter}
	first := s.Split(pendingEntries)
	second := s.Split(pendingEntries)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Split is not deterministic")
	}
}

func TestSplitSmallInputSingleChunk(t *testing.T) {
	s := &Splitter{Size: 10000}
	chunks := s.Split(pendingEntries)
	if len(chunks) != 1 || chunks[0].Text != pendingEntries {
		t.Fatalf("chunks = %#v, want the whole input", chunks)
	}
	if got := s.Split(""); len(got) != 0 {
		t.Fatalf("Split(\"\") = %#v, want none", got)
	}
}

func TestSplitCutsInsideLongWords(t *testing.T) {
	s := &Splitter{Size: 3, Length: RuneCounter}
	got := texts(s.Split("abcdefgh"))
	want := []string{"abc", "def", "gh"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
}

func TestTokenSplitter(t *testing.T) {
	s, err := New(30)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n := s.Length("hello world"); n != 2 {
		t.Fatalf("token count(hello world) = %d, want 2", n)
	}

	chunks := s.Split(pendingEntries)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	if joined := strings.Join(texts(chunks), ""); joined != pendingEntries {
		t.Fatal("joined token chunks differ from input")
	}
	again := s.Split(pendingEntries)
	if !reflect.DeepEqual(chunks, again) {
		t.Fatal("token Split is not deterministic")
	}
}
