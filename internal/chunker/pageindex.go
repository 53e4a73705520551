package chunker

import (
	"errors"
	"fmt"
	"strings"

	"doc-pipeline/internal/extract"
)

// pageSeparator joins consecutive pages in the consolidated buffer. Each
// page's marker range includes its trailing separator, so markers tile the
// buffer exactly.
const pageSeparator = "\n\n"

// ErrNoPages is returned when a document has an empty page sequence.
var ErrNoPages = errors.New("chunker: document has no pages")

// PageMarker records the half-open range a page occupies within the
// consolidated buffer.
type PageMarker struct {
	PageNumber int `json:"page_number"`
	Start      int `json:"start_offset"`
	End        int `json:"end_offset"`
}

// BuildPageIndex concatenates pages in order into one offset-addressable
// buffer and records each page's contribution. Markers are contiguous:
// markers[i].End == markers[i+1].Start.
func BuildPageIndex(pages []extract.Page) (string, []PageMarker, error) {
	if len(pages) == 0 {
		return "", nil, ErrNoPages
	}

	var buf strings.Builder
	markers := make([]PageMarker, 0, len(pages))
	for _, p := range pages {
		if p.PageNumber < 1 {
			return "", nil, fmt.Errorf("chunker: invalid page number %d", p.PageNumber)
		}
		start := buf.Len()
		buf.WriteString(p.Text)
		buf.WriteString(pageSeparator)
		markers = append(markers, PageMarker{
			PageNumber: p.PageNumber,
			Start:      start,
			End:        buf.Len(),
		})
	}
	return buf.String(), markers, nil
}
