package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/entrhq/switchboard/pkg/llm/tokenizer"
)

// DefaultPatterns selects the document types indexed by default.
var DefaultPatterns = []string{"**.pdf", "**.docx", "**.md", "**.txt"}

// Default chunk geometry, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunk is one retrievable piece of a document.
type Chunk struct {
	Source string
	Page   int
	Seq    int
	Text   string
	Tokens int
}

// Splitter cuts documents into overlapping chunks, preferring paragraph,
// then line, then word boundaries.
type Splitter struct {
	size       int
	overlap    int
	separators []string
	tok        *tokenizer.Tokenizer
}

// NewSplitter creates a splitter. Non-positive sizes take the defaults
// and overlap is capped below size. tok counts the tokens of each chunk;
// nil uses the heuristic counter.
func NewSplitter(size, overlap int, tok *tokenizer.Tokenizer) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 5
	}
	if tok == nil {
		tok = tokenizer.Heuristic()
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators, tok: tok}
}

// Split chunks every document. Seq numbers chunks within each source.
func (s *Splitter) Split(docs []Document) []Chunk {
	var chunks []Chunk
	seq := map[string]int{}
	for _, d := range docs {
		for _, text := range s.SplitText(d.Text) {
			chunks = append(chunks, Chunk{
				Source: d.Source,
				Page:   d.Page,
				Seq:    seq[d.Source],
				Text:   text,
				Tokens: s.tok.Count(text),
			})
			seq[d.Source]++
		}
	}
	return chunks
}

// SplitText cuts text into pieces of at most size characters.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		for _, p := range strings.Split(text, separator) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var out, good []string
	for _, p := range pieces {
		if length(p) < s.size {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, separator)...)
	}
	return out
}

// merge packs pieces into chunks of at most size characters, carrying up
// to overlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := length(separator)
	var out, current []string
	total := 0

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, p := range pieces {
		l := length(p)
		if joinedLen(l) > s.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				out = append(out, doc)
			}
			for total > s.overlap || (joinedLen(l) > s.size && total > 0) {
				drop := length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, p)
		total += l
	}
	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		out = append(out, doc)
	}
	return out
}
