package websearch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		wantTitle string
		wantDesc  string
		wantText  []string // substrings that should be present
		wantNot   []string // substrings that should NOT be present
		truncated bool
	}{
		{
			name: "drops scripts and styles",
			input: `<html>
				<head>
					<title>Test Page</title>
					<meta name="description" content="Test description">
					<script>alert('evil');</script>
					<style>body { color: red; }</style>
				</head>
				<body>
					<h1>Hello World</h1>
					<p>This is a test.</p>
					<script>track()</script>
				</body>
			</html>`,
			maxLength: 10000,
			wantTitle: "Test Page",
			wantDesc:  "Test description",
			wantText:  []string{"Hello World", "This is a test."},
			wantNot:   []string{"alert", "color: red", "track()", "<h1>"},
		},
		{
			name: "skips navigation and footer",
			input: `<html><body>
				<nav><a href="/home">Home</a></nav>
				<main><article><h2>Article Title</h2><p>Body text</p></article></main>
				<footer><p>Copyright</p></footer>
			</body></html>`,
			maxLength: 10000,
			wantText:  []string{"Article Title", "Body text"},
			wantNot:   []string{"Home", "Copyright"},
		},
		{
			name:      "truncates long text",
			input:     `<html><body><p>` + strings.Repeat("word ", 100) + `</p></body></html>`,
			maxLength: 50,
			wantText:  []string{"..."},
			truncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ExtractText(tt.input, tt.maxLength)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTitle, page.Title)
			assert.Equal(t, tt.wantDesc, page.Description)
			assert.Equal(t, tt.truncated, page.Truncated)
			for _, want := range tt.wantText {
				assert.Contains(t, page.Text, want)
			}
			for _, not := range tt.wantNot {
				assert.NotContains(t, page.Text, not)
			}
			if tt.truncated {
				assert.LessOrEqual(t, len(page.Text), tt.maxLength+len("..."))
			}
		})
	}
}

func TestExtractText_BlocksOnSeparateLines(t *testing.T) {
	page, err := ExtractText(`<div>first</div><div>second <b>bold</b></div>`, 0)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond bold", page.Text)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "ab", truncateUTF8("abc", 2))
	// "é" is two bytes; cutting inside it backs off to the rune start.
	assert.Equal(t, "a", truncateUTF8("aé", 2))
}
