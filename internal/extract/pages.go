package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is one source page of a document with per-page text metrics.
// Pages are immutable once handed to the chunker.
type Page struct {
	PageNumber int    `json:"page_number"` // 1-indexed
	Text       string `json:"text"`
	CharCount  int    `json:"char_count"`
	WordCount  int    `json:"word_count"`
}

// Metadata describes the document as a whole.
type Metadata struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	PageCount int    `json:"page_count"`
}

// PagesFromPDF extracts text from a PDF, one Page per source page.
func PagesFromPDF(content []byte) ([]Page, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages := make([]Page, 0, numPages)
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		var text string
		if !page.V.IsNull() && page.V.Key("Contents").Kind() != pdf.Null {
			text, err = page.GetPlainText(nil)
			if err != nil {
				// A single unreadable page should not sink the document.
				text = ""
			}
		}
		pages = append(pages, NewPage(pageNum, text))
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}

// PagesFromText wraps plain text as pages, splitting on form feeds when
// present and treating the whole text as page 1 otherwise.
func PagesFromText(text string) []Page {
	parts := strings.Split(text, "\f")
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, NewPage(i+1, part))
	}
	return pages
}

// NewPage builds a Page with derived character and word counts.
func NewPage(number int, text string) Page {
	return Page{
		PageNumber: number,
		Text:       text,
		CharCount:  len(text),
		WordCount:  len(strings.Fields(text)),
	}
}

// MetadataFromPDF reads title and author from the PDF info dictionary,
// falling back to the given title when the document carries none.
func MetadataFromPDF(content []byte, fallbackTitle string) Metadata {
	meta := Metadata{Title: fallbackTitle}
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return meta
	}
	meta.PageCount = pdfReader.NumPage()

	info := pdfReader.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return meta
	}
	if title := info.Key("Title").Text(); title != "" {
		meta.Title = title
	}
	if author := info.Key("Author").Text(); author != "" {
		meta.Author = author
	}
	return meta
}
