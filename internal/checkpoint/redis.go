// Package checkpoint persists pipeline state snapshots keyed by document ID
// so a completed summarization survives process restarts.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"doc-pipeline/internal/pipeline"
)

// Key prefix for checkpointed pipeline runs.
const keyPrefix = "pipeline:"

// RedisStore keeps one JSON snapshot per document in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ pipeline.Checkpointer = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection. A zero ttl
// keeps checkpoints until explicitly deleted.
func NewRedisStore(addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Save overwrites the snapshot for the state's document.
func (s *RedisStore) Save(ctx context.Context, state *pipeline.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+state.DocumentID, data, s.ttl).Err()
}

// Load returns the stored snapshot, or nil when the document has none.
func (s *RedisStore) Load(ctx context.Context, documentID string) (*pipeline.State, error) {
	data, err := s.client.Get(ctx, keyPrefix+documentID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state pipeline.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Delete removes a document's snapshot.
func (s *RedisStore) Delete(ctx context.Context, documentID string) error {
	return s.client.Del(ctx, keyPrefix+documentID).Err()
}

// Close closes the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
