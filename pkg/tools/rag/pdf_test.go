package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "simple show",
			content: "BT /F1 12 Tf 72 712 Td (Hello World) Tj ET",
			want:    "Hello World",
		},
		{
			name:    "kerned array and line move",
			content: "BT [(Hel) 20 (lo) -300 (there)] TJ 0 -14 Td (Next line) Tj ET",
			want:    "Hello there\nNext line",
		},
		{
			name:    "escapes and octal",
			content: `BT (a\(b\)c \101) Tj ET`,
			want:    "a(b)c A",
		},
		{
			name:    "nested parentheses",
			content: "BT (f(x) = y) Tj ET",
			want:    "f(x) = y",
		},
		{
			name:    "hex string",
			content: "BT <48656C6C 6F> Tj ET",
			want:    "Hello",
		},
		{
			name:    "quote moves to next line",
			content: "BT (one) Tj (two) ' ET",
			want:    "one\ntwo",
		},
		{
			name:    "graphics only",
			content: "q 1 0 0 1 0 0 cm 0 0 100 100 re f Q % comment (not text) Tj",
			want:    "",
		},
		{
			name:    "dictionary operands are skipped",
			content: "/Span <</MCID 0>> BDC BT (Tagged) Tj ET EMC",
			want:    "Tagged",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentText([]byte(tt.content)))
		})
	}
}
