package checkpoint

import (
	"context"
	"sync"

	"doc-pipeline/internal/pipeline"
)

// MemoryStore holds checkpoints in process memory. Used when Redis is not
// configured: state survives for the life of the process only.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]pipeline.State
}

var _ pipeline.Checkpointer = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]pipeline.State)}
}

func (s *MemoryStore) Save(_ context.Context, state *pipeline.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DocumentID] = *state
	return nil
}

func (s *MemoryStore) Load(_ context.Context, documentID string) (*pipeline.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[documentID]; ok {
		return &state, nil
	}
	return nil, nil
}

func (s *MemoryStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, documentID)
	return nil
}
