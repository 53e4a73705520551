package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doc-pipeline/internal/app"
	"doc-pipeline/internal/chunker"
	"doc-pipeline/internal/extract"
	"doc-pipeline/internal/httputil"
	"doc-pipeline/internal/pipeline"
	"doc-pipeline/internal/queue"
	"doc-pipeline/internal/store"
)

type summarizeTaskPayload struct {
	DocumentID string `json:"document_id"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/documents/upload", uploadHandler(deps))
	r.Get("/api/documents", listDocumentsHandler(deps))
	r.Post("/api/documents/{id}/summarize", summarizeHandler(deps))
	r.Get("/api/documents/{id}/summary", summaryHandler(deps))
	r.Get("/api/documents/{id}/summary/status", summaryStatusHandler(deps))
	r.Post("/api/query", queryHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}

		pages, meta, err := extractPages(header.Filename, content)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to extract document text", err, http.StatusBadRequest)
			return
		}
		pages = extract.CleanPages(pages)

		doc, err := deps.Store.CreateDocument(ctx, header.Filename, meta.Title, meta.PageCount)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to persist document", err, http.StatusInternalServerError)
			return
		}

		retrievalChunks, summaryChunks, err := deps.Chunker.ChunkDocument(pages,
			chunker.Params{Size: deps.Config.RetrievalChunkSize, Overlap: deps.Config.RetrievalChunkOverlap},
			chunker.Params{Size: deps.Config.SummaryChunkSize, Overlap: deps.Config.SummaryChunkOverlap},
			doc.ID.String(),
		)
		if err != nil {
			fail(ctx, deps, w, "failed to chunk document", err, doc.ID, http.StatusInternalServerError, true)
			return
		}

		storeChunks := make([]store.Chunk, 0, len(retrievalChunks)+len(summaryChunks))
		for _, c := range retrievalChunks {
			storeChunks = append(storeChunks, store.FromChunkerChunk(doc.ID, c))
		}
		for _, c := range summaryChunks {
			storeChunks = append(storeChunks, store.FromChunkerChunk(doc.ID, c))
		}
		saved, err := deps.Store.SaveChunks(ctx, doc.ID, storeChunks)
		if err != nil {
			fail(ctx, deps, w, "failed to persist chunks", err, doc.ID, http.StatusInternalServerError, true)
			return
		}

		if err := indexRetrievalChunks(ctx, deps, doc, saved); err != nil {
			fail(ctx, deps, w, "failed to index retrieval chunks", err, doc.ID, http.StatusInternalServerError, true)
			return
		}
		if err := deps.Store.UpdateDocumentStatus(ctx, doc.ID, store.StatusIndexed); err != nil {
			fail(ctx, deps, w, "failed to update document status", err, doc.ID, http.StatusInternalServerError, false)
			return
		}

		// Kick off summarization in the background worker.
		if err := enqueueSummarize(ctx, deps, doc.ID); err != nil {
			fail(ctx, deps, w, "failed to enqueue summarization; please retry", err, doc.ID, http.StatusInternalServerError, true)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"document_id":      doc.ID.String(),
			"filename":         doc.Filename,
			"page_count":       meta.PageCount,
			"retrieval_chunks": len(retrievalChunks),
			"summary_chunks":   len(summaryChunks),
			"status":           doc.Status,
		})
	}
}

// extractPages reads pages and metadata from the uploaded bytes. PDF is
// extracted page by page; anything else is treated as plain text.
func extractPages(filename string, content []byte) ([]extract.Page, extract.Metadata, error) {
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		pages, err := extract.PagesFromPDF(content)
		if err != nil {
			return nil, extract.Metadata{}, err
		}
		return pages, extract.MetadataFromPDF(content, title), nil
	case ".txt", "":
		pages := extract.PagesFromText(string(content))
		return pages, extract.Metadata{Title: title, PageCount: len(pages)}, nil
	default:
		return nil, extract.Metadata{}, fmt.Errorf("unsupported file type (only PDF and TXT allowed)")
	}
}

func indexRetrievalChunks(ctx context.Context, deps app.Deps, doc store.Document, saved []store.Chunk) error {
	var retrieval []store.Chunk
	for _, c := range saved {
		if c.Type == chunker.ChunkTypeRetrieval {
			retrieval = append(retrieval, c)
		}
	}
	if len(retrieval) == 0 {
		return nil
	}

	texts := make([]string, len(retrieval))
	for i, c := range retrieval {
		// Enrich chunk with document context for better embeddings.
		texts[i] = fmt.Sprintf("Document: %s\n\n%s", doc.Filename, c.Text)
	}
	vectors, err := deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	embs := make([]store.Embedding, len(retrieval))
	for i, c := range retrieval {
		embs[i] = store.Embedding{
			ChunkID: c.ID,
			Vector:  vectors[i],
			Model:   deps.Config.EmbeddingModel,
		}
	}
	return deps.Store.SaveEmbeddings(ctx, embs)
}

func enqueueSummarize(ctx context.Context, deps app.Deps, docID uuid.UUID) error {
	body, err := json.Marshal(summarizeTaskPayload{DocumentID: docID.String()})
	if err != nil {
		return err
	}
	task := queue.Task{Type: queue.TaskTypeSummarize, Payload: body}
	return queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond)
}

// fail is a gateway-specific error handler that can mark documents as failed.
func fail(ctx context.Context, deps app.Deps, w http.ResponseWriter, message string, err error, docID uuid.UUID, status int, markFailed bool) {
	log := deps.Log.With("document_id", docID)
	if markFailed && docID != uuid.Nil {
		if upErr := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed); upErr != nil {
			log.Error("failed to mark document failed", "err", upErr)
		}
	}
	httputil.Fail(log, w, message, err, status)
}

func listDocumentsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Store.ListDocuments(r.Context())
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list documents", err, http.StatusInternalServerError)
			return
		}
		out := make([]map[string]any, 0, len(docs))
		for _, d := range docs {
			out = append(out, map[string]any{
				"document_id": d.ID.String(),
				"filename":    d.Filename,
				"title":       d.Title,
				"page_count":  d.PageCount,
				"status":      d.Status,
				"created_at":  d.CreatedAt,
			})
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": out})
	}
}

// summarizeHandler triggers summarization. A document whose summary already
// exists returns it without re-entering the pipeline.
func summarizeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
			return
		}
		ctx := r.Context()

		if _, err := deps.Store.GetDocument(ctx, docID); err != nil {
			httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
			return
		}

		if sum, err := deps.Store.GetSummary(ctx, docID); err == nil {
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"document_id": docID.String(),
				"status":      "already_summarized",
				"summary":     sum.FinalSummary,
			})
			return
		}

		if err := enqueueSummarize(ctx, deps, docID); err != nil {
			httputil.Fail(deps.Log, w, "failed to enqueue summarization", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"document_id": docID.String(),
			"status":      "queued",
		})
	}
}

func summaryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
			return
		}
		sum, err := deps.Store.GetSummary(r.Context(), docID)
		if err != nil {
			httputil.Fail(deps.Log, w, "summary not ready", err, http.StatusNotFound)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"document_id":      docID.String(),
			"summary":          sum.FinalSummary,
			"chunks_processed": sum.ChunksProcessed,
		})
	}
}

// summaryStatusHandler reports pipeline progress from the checkpoint store,
// falling back to the document record when no run has checkpointed yet.
func summaryStatusHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
			return
		}
		ctx := r.Context()

		doc, err := deps.Store.GetDocument(ctx, docID)
		if err != nil {
			httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
			return
		}

		body := map[string]any{
			"document_id":     docID.String(),
			"document_status": doc.Status,
			"has_summary":     false,
		}
		if state, err := deps.Checkpoint.Load(ctx, docID.String()); err == nil && state != nil {
			body["pipeline_status"] = state.Status
			body["total_chunks"] = state.TotalChunks
			body["summaries_completed"] = state.SummariesCompleted
			body["has_summary"] = state.Status == pipeline.StatusComplete
			if state.ErrorMessage != "" {
				body["error_message"] = state.ErrorMessage
			}
		}
		httputil.WriteJSON(w, http.StatusOK, body)
	}
}

type queryRequest struct {
	Question    string   `json:"question" validate:"required,min=3,max=500"`
	DocumentIDs []string `json:"document_ids" validate:"required,min=1,dive,uuid4"`
	TopK        int      `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type querySource struct {
	ChunkID     string  `json:"chunk_id"`
	DocumentID  string  `json:"document_id"`
	Score       float32 `json:"score"`
	PrimaryPage int     `json:"primary_page"`
	Preview     string  `json:"preview"` // Truncated text preview
}

// queryHandler serves vector search over retrieval chunks.
func queryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		if req.TopK == 0 {
			req.TopK = 5
		}
		ctx := r.Context()

		ids := make([]uuid.UUID, 0, len(req.DocumentIDs))
		for _, raw := range req.DocumentIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				httputil.Fail(deps.Log, w, "invalid document id: "+raw, err, http.StatusBadRequest)
				return
			}
			ids = append(ids, id)
		}

		vector, err := deps.Embedder.Embed(ctx, req.Question)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to embed question", err, http.StatusInternalServerError)
			return
		}
		results, err := deps.Store.TopK(ctx, ids, vector, req.TopK)
		if err != nil {
			httputil.Fail(deps.Log, w, "search failed", err, http.StatusInternalServerError)
			return
		}

		sources := make([]querySource, 0, len(results))
		for _, res := range results {
			sources = append(sources, querySource{
				ChunkID:     res.Chunk.ID.String(),
				DocumentID:  res.Chunk.DocumentID.String(),
				Score:       res.Score,
				PrimaryPage: res.Chunk.PrimaryPage,
				Preview:     preview(res.Chunk.Text, 200),
			})
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"sources": sources})
	}
}

func preview(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
