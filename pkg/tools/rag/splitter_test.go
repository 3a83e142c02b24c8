package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "fits in one chunk",
			size: 100, overlap: 10,
			text: "short text",
			want: []string{"short text"},
		},
		{
			name: "words carry overlap",
			size: 20, overlap: 8,
			text: "one two three four five six seven eight",
			want: []string{"one two three four", "four five six seven", "seven eight"},
		},
		{
			name: "long words fall back to characters",
			size: 10, overlap: 3,
			text: "abcdefghij klmnopqrst uvwxyz",
			want: []string{"abcdefghij", "klmnopqrst", "uvwxyz"},
		},
		{
			name: "paragraphs first",
			size: 30, overlap: 5,
			text: "First paragraph here.\n\nSecond paragraph here.",
			want: []string{"First paragraph here.", "Second paragraph here."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSplitter(tt.size, tt.overlap, nil)
			assert.Equal(t, tt.want, s.SplitText(tt.text))
		})
	}
}

func TestSplitText_RespectsSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Sentence number ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(" ends here.")
		if i%10 == 9 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}

	s := NewSplitter(DefaultChunkSize, DefaultChunkOverlap, nil)
	chunks := s.SplitText(b.String())
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(0, -1, nil)
	assert.Equal(t, DefaultChunkSize, s.size)
	assert.Equal(t, DefaultChunkOverlap, s.overlap)

	s = NewSplitter(100, 100, nil)
	assert.Equal(t, 20, s.overlap)
}

func TestSplit_NumbersChunksPerSource(t *testing.T) {
	s := NewSplitter(20, 0, nil)
	chunks := s.Split([]Document{
		{Source: "a.pdf", Page: 1, Text: "alpha beta gamma delta epsilon"},
		{Source: "a.pdf", Page: 2, Text: "zeta"},
		{Source: "b.md", Text: "eta"},
	})

	require.Len(t, chunks, 4)
	assert.Equal(t, []int{0, 1, 2, 0}, []int{chunks[0].Seq, chunks[1].Seq, chunks[2].Seq, chunks[3].Seq})
	assert.Equal(t, 2, chunks[2].Page)
	assert.Equal(t, "b.md", chunks[3].Source)
	for _, c := range chunks {
		assert.Positive(t, c.Tokens)
	}
}
