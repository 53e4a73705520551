// Package chunker turns paginated document text into two independently
// parameterized chunk collections: small retrieval chunks for vector search
// and large summary chunks for map-reduce summarization. Every chunk carries
// an exact mapping back to the source page(s) it was drawn from.
package chunker

import (
	"fmt"

	"doc-pipeline/internal/extract"
	"doc-pipeline/internal/tokens"
)

// ChunkType tags which pass produced a chunk.
type ChunkType string

const (
	ChunkTypeRetrieval ChunkType = "retrieval"
	ChunkTypeSummary   ChunkType = "summary"
)

// PageRangeUnknown is the page range of a summary chunk that could not be
// attributed to any page.
const PageRangeUnknown = "Unknown"

// Chunk is a contiguous span of document text with attribution metadata.
// Retrieval chunks carry PrimaryPage (0 when unattributed); summary chunks
// carry PageRange ("min-max", or PageRangeUnknown).
type Chunk struct {
	Index       int       `json:"chunk_index"`
	Text        string    `json:"text"`
	CharCount   int       `json:"char_count"`
	TokenCount  int       `json:"token_count"` // -1 when counting failed
	PageNumbers []int     `json:"page_numbers"`
	PrimaryPage int       `json:"primary_page,omitempty"`
	PageRange   string    `json:"page_range,omitempty"`
	DocumentID  string    `json:"document_id"`
	Type        ChunkType `json:"chunk_type"`
}

// DualChunker produces the two chunk collections for a document. The chunking
// passes are synchronous and share no state.
type DualChunker struct {
	counter tokens.Counter
	model   string
}

// New builds a DualChunker that annotates chunks with token counts for the
// given model. A nil counter degrades every token count to -1.
func New(counter tokens.Counter, model string) *DualChunker {
	return &DualChunker{counter: counter, model: model}
}

// ChunkDocument runs the retrieval and summary passes over the same pages.
// The passes are fully independent: each rebuilds the page index and threads
// its own attribution cursor, so changing one pass's parameters never affects
// the other's output.
func (c *DualChunker) ChunkDocument(pages []extract.Page, retrievalParams, summaryParams Params, documentID string) (retrieval, summary []Chunk, err error) {
	retrieval, err = c.pass(pages, retrievalParams, documentID, ChunkTypeRetrieval)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieval pass: %w", err)
	}
	summary, err = c.pass(pages, summaryParams, documentID, ChunkTypeSummary)
	if err != nil {
		return nil, nil, fmt.Errorf("summary pass: %w", err)
	}
	return retrieval, summary, nil
}

func (c *DualChunker) pass(pages []extract.Page, params Params, documentID string, typ ChunkType) ([]Chunk, error) {
	buffer, markers, err := BuildPageIndex(pages)
	if err != nil {
		return nil, err
	}
	segments, err := Split(buffer, params)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(segments))
	cursor := 0
	for idx, segment := range segments {
		var attr Attribution
		attr, cursor = Attribute(buffer, segment, markers, cursor)

		chunk := Chunk{
			Index:       idx,
			Text:        segment,
			CharCount:   len(segment),
			TokenCount:  c.countTokens(segment),
			PageNumbers: attr.PageNumbers,
			DocumentID:  documentID,
			Type:        typ,
		}
		switch typ {
		case ChunkTypeRetrieval:
			if len(attr.PageNumbers) > 0 {
				chunk.PrimaryPage = attr.PageNumbers[0]
			}
		case ChunkTypeSummary:
			chunk.PageRange = formatPageRange(attr.PageNumbers)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (c *DualChunker) countTokens(text string) int {
	if c.counter == nil {
		return -1
	}
	return c.counter.Count(text, c.model)
}

// formatPageRange renders "min-max" over the attributed pages. PageNumbers
// are ascending by construction, so min and max are the endpoints.
func formatPageRange(pages []int) string {
	if len(pages) == 0 {
		return PageRangeUnknown
	}
	return fmt.Sprintf("%d-%d", pages[0], pages[len(pages)-1])
}
