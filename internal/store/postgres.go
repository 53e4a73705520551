package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"doc-pipeline/internal/chunker"
	"doc-pipeline/internal/embeddings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Use advisory lock to prevent concurrent migrations when gateway and
	// summarizer start together. Note: in production, use dedicated migration
	// tools (e.g. golang-migrate/migrate) as a separate deployment step.
	const lockID = 424242042

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			filename TEXT,
			title TEXT,
			page_count INT,
			status TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
			ord INT,
			chunk_type TEXT,
			text TEXT,
			char_count INT,
			token_count INT,
			page_numbers INT[],
			primary_page INT,
			page_range TEXT,
			UNIQUE (document_id, chunk_type, ord)
		);`,
		`CREATE TABLE IF NOT EXISTS summaries (
			document_id UUID PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			final_summary TEXT,
			chunks_processed INT
		);`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			chunk_id UUID PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			vector vector(1536),
			model TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS embeddings_vector_idx
		ON embeddings USING ivfflat (vector vector_cosine_ops)
		WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, filename, title string, pageCount int) (Document, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(id, filename, title, page_count, status) VALUES($1,$2,$3,$4,$5)`,
		id, filename, title, pageCount, StatusProcessing)
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:        id,
		Filename:  filename,
		Title:     title,
		PageCount: pageCount,
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
	}, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	var d Document
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, title, page_count, status, created_at FROM documents WHERE id=$1`, id)
	if err := row.Scan(&d.ID, &d.Filename, &d.Title, &d.PageCount, &d.Status, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}
	return d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, title, page_count, status, created_at FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Title, &d.PageCount, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresStore) SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		cid := uuid.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(id, document_id, ord, chunk_type, text, char_count, token_count, page_numbers, primary_page, page_range)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			cid, docID, c.Index, c.Type, c.Text, c.CharCount, c.TokenCount,
			pq.Array(c.PageNumbers), c.PrimaryPage, c.PageRange)
		if err != nil {
			return nil, err
		}
		c.ID = cid
		c.DocumentID = docID
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListChunks(ctx context.Context, docID uuid.UUID, chunkType chunker.ChunkType) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ord, chunk_type, text, char_count, token_count, page_numbers, primary_page, page_range
		FROM chunks WHERE document_id=$1 AND chunk_type=$2 ORDER BY ord`,
		docID, chunkType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var pages []int64
		if err := rows.Scan(&c.ID, &c.Index, &c.Type, &c.Text, &c.CharCount, &c.TokenCount,
			pq.Array(&pages), &c.PrimaryPage, &c.PageRange); err != nil {
			return nil, err
		}
		c.DocumentID = docID
		c.PageNumbers = make([]int, len(pages))
		for i, p := range pages {
			c.PageNumbers[i] = int(p)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveSummary(ctx context.Context, docID uuid.UUID, summary Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries(document_id, final_summary, chunks_processed)
		VALUES($1,$2,$3)
		ON CONFLICT (document_id) DO UPDATE SET final_summary=excluded.final_summary, chunks_processed=excluded.chunks_processed`,
		docID, summary.FinalSummary, summary.ChunksProcessed)
	return err
}

func (s *PostgresStore) GetSummary(ctx context.Context, docID uuid.UUID) (Summary, error) {
	var sum Summary
	row := s.db.QueryRowContext(ctx,
		`SELECT final_summary, chunks_processed FROM summaries WHERE document_id=$1`, docID)
	if err := row.Scan(&sum.FinalSummary, &sum.ChunksProcessed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Summary{}, ErrSummaryNotFound
		}
		return Summary{}, fmt.Errorf("failed to get summary for doc %s: %w", docID, err)
	}
	sum.DocumentID = docID
	return sum, nil
}

func (s *PostgresStore) SaveEmbeddings(ctx context.Context, embs []Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, emb := range embs {
		vecStr := vectorToString(emb.Vector)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings(chunk_id, vector, model)
			VALUES($1,$2::vector,$3)
			ON CONFLICT (chunk_id) DO UPDATE SET vector=excluded.vector, model=excluded.model`,
			emb.ChunkID, vecStr, emb.Model)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) TopK(ctx context.Context, docIDs []uuid.UUID, vector embeddings.Vector, k int) ([]SearchResult, error) {
	queryVec := vectorToString(vector)

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id,
			c.document_id,
			c.ord,
			c.text,
			c.token_count,
			c.primary_page,
			c.page_numbers,
			1 - (e.vector <=> $1::vector) AS similarity
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE c.document_id = ANY($2) AND c.chunk_type = $3
		ORDER BY e.vector <=> $1::vector
		LIMIT $4
	`, queryVec, pqUUIDArray(docIDs), chunker.ChunkTypeRetrieval, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var c Chunk
		var pages []int64
		var score float32
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.TokenCount,
			&c.PrimaryPage, pq.Array(&pages), &score); err != nil {
			return nil, err
		}
		c.Type = chunker.ChunkTypeRetrieval
		c.PageNumbers = make([]int, len(pages))
		for i, p := range pages {
			c.PageNumbers[i] = int(p)
		}
		results = append(results, SearchResult{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

func pqUUIDArray(items []uuid.UUID) any {
	if len(items) == 0 {
		return pq.Array([]string{})
	}
	strs := make([]string, len(items))
	for i, id := range items {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}

// vectorToString converts a Vector to pgvector text format: "[0.1,0.2,...]"
func vectorToString(v embeddings.Vector) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
