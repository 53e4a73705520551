package llm

import "context"

// Section is one large document chunk handed to the map stage.
type Section struct {
	Text      string
	Index     int // 0-based chunk index
	Total     int // total sections in the document
	PageRange string
	CharCount int
}

// Synthesis carries the ordered section summaries and document metadata for
// the reduce stage.
type Synthesis struct {
	Title            string
	PageCount        int
	SectionSummaries []string
}

// Summarizer is the injected summarization capability. Both calls may fail;
// failures surface as pipeline errors. Retry and timeout policy belong to the
// implementation, not to the pipeline.
type Summarizer interface {
	// SummarizeSection produces a dense summary (about 500 words) of one
	// section of a large document.
	SummarizeSection(ctx context.Context, section Section) (string, error)

	// Synthesize merges ordered section summaries into one coherent document
	// summary (about 2000 words), preserving facts, figures, and dates.
	Synthesize(ctx context.Context, synthesis Synthesis) (string, error)
}
