package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(deps.Summarizer, deps.Checkpoint, deps.Log)
	handler := summarizeHandler(deps, runner)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("summarizer worker started", "task_type", queue.TaskTypeSummarize)
		return deps.Queue.Worker(ctx, queue.TaskTypeSummarize, handler)
	})
	g.Go(func() error {
		return httputil.ServeHealth(deps.Log, deps.Config.Port, "summarizer")
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		deps.Log.Error("summarizer stopped", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("summarizer shut down")
}

// summarizeHandler runs the map-reduce pipeline for one document and persists
// the result. Errors are returned so the queue can schedule a retry.
func summarizeHandler(deps app.Deps, runner *pipeline.Runner) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		var payload summarizeTaskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			deps.Log.Error("invalid summarize payload, dropping task", "task_id", task.ID, "err", err)
			return nil
		}
		docID, err := uuid.Parse(payload.DocumentID)
		if err != nil {
			deps.Log.Error("invalid document id in payload, dropping task", "task_id", task.ID, "err", err)
			return nil
		}
		log := deps.Log.With("document_id", docID)

		doc, err := deps.Store.GetDocument(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to load document: %w", err)
		}
		stored, err := deps.Store.ListChunks(ctx, docID, chunker.ChunkTypeSummary)
		if err != nil {
			return fmt.Errorf("failed to load summary chunks: %w", err)
		}
		chunks := make([]chunker.Chunk, len(stored))
		for i, c := range stored {
			chunks[i] = store.ToChunkerChunk(c)
		}

		meta := extract.Metadata{Title: doc.Title, PageCount: doc.PageCount}
		state, err := runner.Run(ctx, docID.String(), meta, chunks)
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInFlight) {
				log.Warn("summarization already running, dropping duplicate task")
				return nil
			}
			if markErr := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed); markErr != nil {
				log.Error("failed to mark document failed", "err", markErr)
			}
			return fmt.Errorf("pipeline run failed: %w", err)
		}

		summary := store.Summary{
			DocumentID:      docID,
			FinalSummary:    state.FinalSummary,
			ChunksProcessed: state.TotalChunks,
		}
		if err := deps.Store.SaveSummary(ctx, docID, summary); err != nil {
			return fmt.Errorf("failed to persist summary: %w", err)
		}
		if err := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusSummarized); err != nil {
			return fmt.Errorf("failed to update document status: %w", err)
		}
		log.Info("document summarized", "chunks_processed", state.TotalChunks)
		return nil
	}
}
