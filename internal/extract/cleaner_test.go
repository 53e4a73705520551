package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTextPageHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"page of total", "Intro. Page 3 of 12 More text.", "Intro. More text."},
		{"bare page number", "page 7\nBody text", "Body text"},
		{"case insensitive", "PAGE 1 OF 2 content", "content"},
		{"no header untouched", "Nothing to remove here", "Nothing to remove here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestCleanTextWhitespace(t *testing.T) {
	input := "line one\t\t with    tabs\n\n\n\n\nline two\fend"
	got := CleanText(input)

	assert.Equal(t, "line one with tabs\n\nline twoend", got)
}

func TestCleanPages(t *testing.T) {
	pages := []Page{
		NewPage(1, "  first   page  \f"),
		NewPage(2, "second\n\n\n\npage"),
	}
	cleaned := CleanPages(pages)

	assert.Len(t, cleaned, 2)
	assert.Equal(t, "first page", cleaned[0].Text)
	assert.Equal(t, 1, cleaned[0].PageNumber)
	assert.Equal(t, len("first page"), cleaned[0].CharCount)
	assert.Equal(t, 2, cleaned[0].WordCount)
	assert.Equal(t, "second\n\npage", cleaned[1].Text)

	// Originals must not be mutated.
	assert.Equal(t, "  first   page  \f", pages[0].Text)
}

func TestPagesFromText(t *testing.T) {
	pages := PagesFromText("page one\fpage two")
	assert.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "page one", pages[0].Text)
	assert.Equal(t, 2, pages[1].PageNumber)

	single := PagesFromText("just text")
	assert.Len(t, single, 1)
	assert.Equal(t, 1, single[0].PageNumber)
}
