package pipeline

import (
	"doc-pipeline/internal/chunker"
	"doc-pipeline/internal/extract"
)

// Status enumerates the pipeline states. A run moves
// distributing -> mapping -> reducing -> complete; error and cancelled are
// terminal states reachable from mapping or reducing.
type Status string

const (
	StatusDistributing Status = "distributing"
	StatusMapping      Status = "mapping"
	StatusReducing     Status = "reducing"
	StatusComplete     Status = "complete"
	StatusError        Status = "error"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether a run in this status has finished.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// State is the checkpointable state of one summarization run. It is owned
// exclusively by the run processing it: created at start, mutated only by
// pipeline stages, persisted on every transition when a checkpointer is set.
type State struct {
	DocumentID    string           `json:"document_id"`
	Metadata      extract.Metadata `json:"document_metadata"`
	SummaryChunks []chunker.Chunk  `json:"summary_chunks"`
	TotalChunks   int              `json:"total_chunks"`

	// ChunkSummaries is index-aligned with SummaryChunks and committed
	// all-or-nothing by the map stage.
	ChunkSummaries     []string `json:"chunk_summaries"`
	SummariesCompleted int      `json:"summaries_completed"`

	FinalSummary string `json:"final_summary"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}
