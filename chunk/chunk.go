// Package chunk splits serialized catalog text into pieces that fit a
// per-request token budget.
//
// Splitting is governed by size, not by message boundaries: the splitter
// prefers blank lines, then line breaks, then spaces, and only cuts inside a
// word when nothing else fits. Every piece keeps its trailing separator, so
// joining the chunk texts gives back the input byte for byte.
package chunk

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the tokenizer used by GPT-4 class models.
const DefaultEncoding = "cl100k_base"

// DefaultSize is the default chunk budget in tokens.
const DefaultSize = 1500

// Chunk is one slice of the input text.
type Chunk struct {
	// Index is the chunk's position in the sequence.
	Index int
	// Text is the chunk content.
	Text string
}

// LengthFunc measures a piece of text in budget units.
type LengthFunc func(string) int

// RuneCounter measures text in runes.
func RuneCounter(s string) int {
	return utf8.RuneCountInString(s)
}

var loaderOnce sync.Once

// TokenCounter returns a LengthFunc counting tokens of the named tiktoken
// encoding. BPE ranks are loaded from the embedded offline loader, so no
// network access is needed.
func TokenCounter(encoding string) (LengthFunc, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %s: %w", encoding, err)
	}
	var mu sync.Mutex
	return func(s string) int {
		mu.Lock()
		defer mu.Unlock()
		return len(enc.Encode(s, nil, nil))
	}, nil
}

// separators are tried in order; "" means cut between runes.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most Size units, with no overlap.
type Splitter struct {
	// Size is the budget per chunk. Values below 1 are treated as 1.
	Size int
	// Length measures text. Defaults to RuneCounter.
	Length LengthFunc
}

// New returns a token-budget splitter using DefaultEncoding.
func New(size int) (*Splitter, error) {
	length, err := TokenCounter(DefaultEncoding)
	if err != nil {
		return nil, err
	}
	return &Splitter{Size: size, Length: length}, nil
}

// Split cuts text into chunks. Empty input yields no chunks.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}
	size := s.Size
	if size < 1 {
		size = 1
	}
	length := s.Length
	if length == nil {
		length = RuneCounter
	}

	texts := merge(pieces(text, 0, size, length), size)
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, Text: t}
	}
	return chunks
}

// piece is a fragment of input with its measured length.
type piece struct {
	text string
	n    int
}

// pieces breaks text on separators[level], recursing into fragments that
// are still larger than size.
func pieces(text string, level, size int, length LengthFunc) []piece {
	sep := separators[level]
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.SplitAfter(text, sep)
	}

	out := make([]piece, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		n := length(p)
		if n > size && level < len(separators)-1 {
			out = append(out, pieces(p, level+1, size, length)...)
			continue
		}
		out = append(out, piece{text: p, n: n})
	}
	return out
}

// merge packs pieces greedily into chunks whose summed length stays within
// size. A single piece larger than size becomes its own chunk.
func merge(ps []piece, size int) []string {
	var chunks []string
	var cur strings.Builder
	total := 0

	for _, p := range ps {
		if total > 0 && total+p.n > size {
			chunks = append(chunks, cur.String())
			cur.Reset()
			total = 0
		}
		cur.WriteString(p.text)
		total += p.n
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
