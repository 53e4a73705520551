// Package pipeline drives map-reduce summarization over a document's summary
// chunks: a distribute stage that validates input, a parallel map stage that
// summarizes every chunk behind a join barrier, and a reduce stage that
// synthesizes the partial summaries into one final document summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"doc-pipeline/internal/chunker"
	"doc-pipeline/internal/extract"
	"doc-pipeline/internal/llm"
)

var (
	// ErrNoChunks is returned by the distribute stage for an empty chunk set.
	ErrNoChunks = errors.New("pipeline: no summary chunks to distribute")

	// ErrRunInFlight is returned when a second run is requested for a
	// document that is already being summarized. Callers must serialize
	// runs per document.
	ErrRunInFlight = errors.New("pipeline: summarization already in flight for document")
)

// Checkpointer persists pipeline state between stage transitions so a
// completed run can be recognized after restart. A nil Checkpointer keeps
// state in memory for the duration of one run only.
type Checkpointer interface {
	Save(ctx context.Context, state *State) error
	Load(ctx context.Context, documentID string) (*State, error)
}

// Runner executes summarization runs. It is safe for concurrent use across
// documents; runs for the same document are rejected while one is in flight.
type Runner struct {
	summarizer llm.Summarizer
	ckpt       Checkpointer
	log        *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewRunner builds a Runner. ckpt may be nil.
func NewRunner(summarizer llm.Summarizer, ckpt Checkpointer, log *slog.Logger) *Runner {
	return &Runner{
		summarizer: summarizer,
		ckpt:       ckpt,
		log:        log,
		inflight:   make(map[string]struct{}),
	}
}

// Run drives a document from distributing to a terminal status. A document
// whose checkpointed state is already complete returns the cached final
// summary without re-entering the state machine. The returned State is always
// non-nil and carries the terminal status; the error mirrors ErrorMessage for
// failed runs.
func (r *Runner) Run(ctx context.Context, documentID string, meta extract.Metadata, summaryChunks []chunker.Chunk) (*State, error) {
	if err := r.acquire(documentID); err != nil {
		return nil, err
	}
	defer r.release(documentID)

	if prev := r.loadComplete(ctx, documentID); prev != nil {
		r.log.Info("document already summarized", "document_id", documentID)
		return prev, nil
	}

	state := &State{
		DocumentID:    documentID,
		Metadata:      meta,
		SummaryChunks: summaryChunks,
		Status:        StatusDistributing,
	}

	if err := r.distribute(ctx, state); err != nil {
		return r.fail(ctx, state, err)
	}
	if err := r.mapSummarize(ctx, state); err != nil {
		return r.fail(ctx, state, err)
	}
	if err := r.reduce(ctx, state); err != nil {
		return r.fail(ctx, state, err)
	}

	state.Status = StatusComplete
	r.checkpoint(ctx, state)
	r.log.Info("summarization complete",
		"document_id", documentID, "chunks", state.SummariesCompleted)
	return state, nil
}

// distribute validates the chunk set and prepares the map stage.
func (r *Runner) distribute(_ context.Context, state *State) error {
	if len(state.SummaryChunks) == 0 {
		return ErrNoChunks
	}
	state.TotalChunks = len(state.SummaryChunks)
	state.ChunkSummaries = nil
	state.SummariesCompleted = 0
	state.Status = StatusMapping
	return nil
}

// mapSummarize fans out one summarization call per chunk and joins: every
// call settles before the stage resolves, then any single failure aborts it
// with no partial summaries committed. Each goroutine writes only its own
// indexed slot, so the join barrier is the only synchronization needed.
func (r *Runner) mapSummarize(ctx context.Context, state *State) error {
	r.checkpoint(ctx, state)

	summaries := make([]string, state.TotalChunks)
	var g errgroup.Group
	for _, chunk := range state.SummaryChunks {
		g.Go(func() error {
			out, err := r.summarizer.SummarizeSection(ctx, llm.Section{
				Text:      chunk.Text,
				Index:     chunk.Index,
				Total:     state.TotalChunks,
				PageRange: chunk.PageRange,
				CharCount: chunk.CharCount,
			})
			if err != nil {
				return fmt.Errorf("section %d: %w", chunk.Index, err)
			}
			summaries[chunk.Index] = out
			return nil
		})
	}
	// Wait returns only after all calls settle; the first failure does not
	// short-circuit the barrier.
	if err := g.Wait(); err != nil {
		return err
	}

	state.ChunkSummaries = summaries
	state.SummariesCompleted = len(summaries)
	state.Status = StatusReducing
	return nil
}

// reduce synthesizes the ordered chunk summaries into the final summary.
func (r *Runner) reduce(ctx context.Context, state *State) error {
	r.checkpoint(ctx, state)

	final, err := r.summarizer.Synthesize(ctx, llm.Synthesis{
		Title:            state.Metadata.Title,
		PageCount:        state.Metadata.PageCount,
		SectionSummaries: state.ChunkSummaries,
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	state.FinalSummary = final
	return nil
}

// fail records a terminal failure. A cancelled context becomes cancelled,
// anything else becomes error. ChunkSummaries already committed by a
// successful map stage stay in the checkpoint; partial map results are never
// committed at all.
func (r *Runner) fail(ctx context.Context, state *State, err error) (*State, error) {
	if ctx.Err() != nil {
		state.Status = StatusCancelled
	} else {
		state.Status = StatusError
	}
	state.ErrorMessage = err.Error()
	// The run's context may be cancelled; checkpoint with a fresh one so the
	// terminal state is still recorded.
	r.checkpoint(context.WithoutCancel(ctx), state)
	r.log.Error("summarization failed",
		"document_id", state.DocumentID, "status", state.Status, "err", err)
	return state, err
}

func (r *Runner) acquire(documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[documentID]; busy {
		return fmt.Errorf("%w: %s", ErrRunInFlight, documentID)
	}
	r.inflight[documentID] = struct{}{}
	return nil
}

func (r *Runner) release(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, documentID)
}

// loadComplete returns the checkpointed state when it is already complete.
func (r *Runner) loadComplete(ctx context.Context, documentID string) *State {
	if r.ckpt == nil {
		return nil
	}
	prev, err := r.ckpt.Load(ctx, documentID)
	if err != nil {
		r.log.Warn("checkpoint load failed", "document_id", documentID, "err", err)
		return nil
	}
	if prev != nil && prev.Status == StatusComplete {
		return prev
	}
	return nil
}

func (r *Runner) checkpoint(ctx context.Context, state *State) {
	if r.ckpt == nil {
		return
	}
	if err := r.ckpt.Save(ctx, state); err != nil {
		r.log.Warn("checkpoint save failed",
			"document_id", state.DocumentID, "status", state.Status, "err", err)
	}
}
