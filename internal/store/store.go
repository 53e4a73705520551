package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"doc-pipeline/internal/chunker"
	"doc-pipeline/internal/embeddings"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing" // uploaded, chunking/indexing in progress
	StatusIndexed    DocumentStatus = "indexed"    // retrieval chunks stored, summarization pending
	StatusSummarized DocumentStatus = "summarized" // final summary available
	StatusFailed     DocumentStatus = "failed"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSummaryNotFound  = errors.New("summary not found")
)

type Document struct {
	ID        uuid.UUID
	Filename  string
	Title     string
	PageCount int
	Status    DocumentStatus
	CreatedAt time.Time
}

// Chunk is a persisted document chunk. Type distinguishes the two chunking
// passes; PrimaryPage and PageRange are populated per type.
type Chunk struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Index       int
	Type        chunker.ChunkType
	Text        string
	CharCount   int
	TokenCount  int
	PageNumbers []int
	PrimaryPage int
	PageRange   string
}

type Summary struct {
	DocumentID      uuid.UUID
	FinalSummary    string
	ChunksProcessed int
}

type Embedding struct {
	ChunkID uuid.UUID
	Vector  embeddings.Vector
	Model   string
}

type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Store defines the persistence contract shared by the gateway and the
// summarizer worker.
type Store interface {
	CreateDocument(ctx context.Context, filename, title string, pageCount int) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error
	SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error)
	ListChunks(ctx context.Context, docID uuid.UUID, chunkType chunker.ChunkType) ([]Chunk, error)
	SaveSummary(ctx context.Context, docID uuid.UUID, summary Summary) error
	GetSummary(ctx context.Context, docID uuid.UUID) (Summary, error)
	SaveEmbeddings(ctx context.Context, embs []Embedding) error
	TopK(ctx context.Context, docIDs []uuid.UUID, vector embeddings.Vector, k int) ([]SearchResult, error)
}

// FromChunkerChunk converts a chunker output chunk for persistence.
func FromChunkerChunk(docID uuid.UUID, c chunker.Chunk) Chunk {
	return Chunk{
		DocumentID:  docID,
		Index:       c.Index,
		Type:        c.Type,
		Text:        c.Text,
		CharCount:   c.CharCount,
		TokenCount:  c.TokenCount,
		PageNumbers: c.PageNumbers,
		PrimaryPage: c.PrimaryPage,
		PageRange:   c.PageRange,
	}
}

// ToChunkerChunk converts a persisted chunk back for the pipeline.
func ToChunkerChunk(c Chunk) chunker.Chunk {
	return chunker.Chunk{
		Index:       c.Index,
		Text:        c.Text,
		CharCount:   c.CharCount,
		TokenCount:  c.TokenCount,
		PageNumbers: c.PageNumbers,
		PrimaryPage: c.PrimaryPage,
		PageRange:   c.PageRange,
		DocumentID:  c.DocumentID.String(),
		Type:        c.Type,
	}
}
