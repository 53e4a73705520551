package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"doc-pipeline/internal/app"
	"doc-pipeline/internal/checkpoint"
	"doc-pipeline/internal/chunker"
	"doc-pipeline/internal/config"
	"doc-pipeline/internal/embeddings"
	"doc-pipeline/internal/pipeline"
	"doc-pipeline/internal/queue"
	"doc-pipeline/internal/store"
)

func newTestDeps(st store.Store, q queue.Queue, e embeddings.Embedder, ckpt pipeline.Checkpointer) app.Deps {
	if ckpt == nil {
		ckpt = checkpoint.NewMemoryStore()
	}
	return app.Deps{
		Store:      st,
		Queue:      q,
		Embedder:   e,
		Checkpoint: ckpt,
		Chunker:    chunker.New(nil, ""),
		Config: config.Config{
			MaxUploadSize:         1024 * 1024, // 1MB for tests
			RetrievalChunkSize:    1000,
			RetrievalChunkOverlap: 100,
			SummaryChunkSize:      15000,
			SummaryChunkOverlap:   500,
			EmbeddingModel:        "test-model",
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestUploadHandler(t *testing.T) {
	validDocID := uuid.New()
	chunkID := uuid.New()

	savedChunks := []store.Chunk{
		{ID: chunkID, DocumentID: validDocID, Type: chunker.ChunkTypeRetrieval, Text: "Hello gateway"},
		{ID: uuid.New(), DocumentID: validDocID, Type: chunker.ChunkTypeSummary, Text: "Hello gateway"},
	}

	tests := []struct {
		name          string
		filename      string
		content       []byte
		setup         func(*store.MockStore, *queue.MockQueue, *embeddings.MockEmbedder)
		wantStatus    int
		checkResponse func(*testing.T, *http.Response)
	}{
		{
			name:     "successful txt upload",
			filename: "test.txt",
			content:  []byte("Hello gateway"),
			setup: func(s *store.MockStore, q *queue.MockQueue, e *embeddings.MockEmbedder) {
				s.On("CreateDocument", mock.Anything, "test.txt", "test", 1).
					Return(store.Document{ID: validDocID, Filename: "test.txt", Status: store.StatusProcessing}, nil).Once()
				s.On("SaveChunks", mock.Anything, validDocID, mock.Anything).
					Return(savedChunks, nil).Once()
				e.On("EmbedBatch", mock.Anything, []string{"Document: test.txt\n\nHello gateway"}).
					Return([]embeddings.Vector{{0.1, 0.2}}, nil).Once()
				s.On("SaveEmbeddings", mock.Anything, mock.MatchedBy(func(embs []store.Embedding) bool {
					return len(embs) == 1 && embs[0].ChunkID == chunkID
				})).Return(nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusIndexed).Return(nil).Once()
				q.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
					return task.Type == queue.TaskTypeSummarize
				})).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]any
				if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if result["document_id"] != validDocID.String() {
					t.Errorf("Expected document_id %s, got %v", validDocID, result["document_id"])
				}
				if result["retrieval_chunks"].(float64) != 1 || result["summary_chunks"].(float64) != 1 {
					t.Errorf("Expected one chunk per pass, got %v / %v", result["retrieval_chunks"], result["summary_chunks"])
				}
			},
		},
		{
			name:       "file too large",
			filename:   "large.txt",
			content:    make([]byte, 2*1024*1024), // 2MB
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported extension",
			filename:   "test.docx",
			content:    []byte("content"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:     "CreateDocument failure",
			filename: "test.txt",
			content:  []byte("content"),
			setup: func(s *store.MockStore, q *queue.MockQueue, e *embeddings.MockEmbedder) {
				s.On("CreateDocument", mock.Anything, "test.txt", "test", 1).
					Return(store.Document{}, errors.New("db error")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:     "enqueue failure marks document failed",
			filename: "test.txt",
			content:  []byte("Hello gateway"),
			setup: func(s *store.MockStore, q *queue.MockQueue, e *embeddings.MockEmbedder) {
				s.On("CreateDocument", mock.Anything, "test.txt", "test", 1).
					Return(store.Document{ID: validDocID, Filename: "test.txt", Status: store.StatusProcessing}, nil).Once()
				s.On("SaveChunks", mock.Anything, validDocID, mock.Anything).
					Return(savedChunks, nil).Once()
				e.On("EmbedBatch", mock.Anything, mock.Anything).
					Return([]embeddings.Vector{{0.1}}, nil).Once()
				s.On("SaveEmbeddings", mock.Anything, mock.Anything).Return(nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusIndexed).Return(nil).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("queue error")).Times(3)
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusFailed).Return(nil).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			mockQueue := new(queue.MockQueue)
			mockEmbedder := new(embeddings.MockEmbedder)

			if tt.setup != nil {
				tt.setup(mockStore, mockQueue, mockEmbedder)
			}

			deps := newTestDeps(mockStore, mockQueue, mockEmbedder, nil)
			handler := uploadHandler(deps)

			req, err := createMultipartRequest(tt.filename, tt.content)
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}

			w := httptest.NewRecorder()
			handler(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("Expected status %d, got %d. Body: %s", tt.wantStatus, resp.StatusCode, string(body))
			}

			if tt.checkResponse != nil {
				resp.Body = io.NopCloser(bytes.NewReader(w.Body.Bytes()))
				tt.checkResponse(t, resp)
			}

			mockStore.AssertExpectations(t)
			mockQueue.AssertExpectations(t)
			mockEmbedder.AssertExpectations(t)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		deps := newTestDeps(new(store.MockStore), new(queue.MockQueue), new(embeddings.MockEmbedder), nil)
		handler := uploadHandler(deps)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", nil)
		req.Header.Set("Content-Type", "multipart/form-data")
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestSummarizeHandler(t *testing.T) {
	validDocID := uuid.New()

	tests := []struct {
		name       string
		docID      string
		setup      func(*store.MockStore, *queue.MockQueue)
		wantStatus int
		wantField  string
		wantValue  string
	}{
		{
			name:  "cached summary short-circuits",
			docID: validDocID.String(),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("GetDocument", mock.Anything, validDocID).
					Return(store.Document{ID: validDocID, Status: store.StatusSummarized}, nil).Once()
				s.On("GetSummary", mock.Anything, validDocID).
					Return(store.Summary{DocumentID: validDocID, FinalSummary: "done"}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantField:  "status",
			wantValue:  "already_summarized",
		},
		{
			name:  "missing summary enqueues work",
			docID: validDocID.String(),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("GetDocument", mock.Anything, validDocID).
					Return(store.Document{ID: validDocID, Status: store.StatusIndexed}, nil).Once()
				s.On("GetSummary", mock.Anything, validDocID).
					Return(store.Summary{}, store.ErrSummaryNotFound).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
			wantField:  "status",
			wantValue:  "queued",
		},
		{
			name:  "unknown document",
			docID: validDocID.String(),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("GetDocument", mock.Anything, validDocID).
					Return(store.Document{}, store.ErrDocumentNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid id",
			docID:      "not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			mockQueue := new(queue.MockQueue)
			if tt.setup != nil {
				tt.setup(mockStore, mockQueue)
			}
			deps := newTestDeps(mockStore, mockQueue, new(embeddings.MockEmbedder), nil)
			handler := summarizeHandler(deps)

			req := httptest.NewRequest(http.MethodPost, "/api/documents/"+tt.docID+"/summarize", nil)
			req = withURLParam(req, "id", tt.docID)
			w := httptest.NewRecorder()
			handler(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantField != "" {
				var result map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if result[tt.wantField] != tt.wantValue {
					t.Errorf("Expected %s=%q, got %v", tt.wantField, tt.wantValue, result[tt.wantField])
				}
			}
			mockStore.AssertExpectations(t)
			mockQueue.AssertExpectations(t)
		})
	}
}

func TestSummaryStatusHandler(t *testing.T) {
	validDocID := uuid.New()

	mockStore := new(store.MockStore)
	mockStore.On("GetDocument", mock.Anything, validDocID).
		Return(store.Document{ID: validDocID, Status: store.StatusIndexed}, nil).Twice()

	ckpt := checkpoint.NewMemoryStore()
	deps := newTestDeps(mockStore, new(queue.MockQueue), new(embeddings.MockEmbedder), ckpt)
	handler := summaryStatusHandler(deps)

	t.Run("no checkpoint falls back to document status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/"+validDocID.String()+"/summary/status", nil)
		req = withURLParam(req, "id", validDocID.String())
		w := httptest.NewRecorder()
		handler(w, req)

		var result map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if result["document_status"] != string(store.StatusIndexed) {
			t.Errorf("Expected document_status indexed, got %v", result["document_status"])
		}
		if _, ok := result["pipeline_status"]; ok {
			t.Error("Expected no pipeline_status before any checkpoint")
		}
	})

	t.Run("checkpoint state reported", func(t *testing.T) {
		err := ckpt.Save(context.Background(), &pipeline.State{
			DocumentID:         validDocID.String(),
			Status:             pipeline.StatusMapping,
			TotalChunks:        4,
			SummariesCompleted: 2,
		})
		if err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/documents/"+validDocID.String()+"/summary/status", nil)
		req = withURLParam(req, "id", validDocID.String())
		w := httptest.NewRecorder()
		handler(w, req)

		var result map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if result["pipeline_status"] != string(pipeline.StatusMapping) {
			t.Errorf("Expected pipeline_status mapping, got %v", result["pipeline_status"])
		}
		if result["summaries_completed"].(float64) != 2 {
			t.Errorf("Expected summaries_completed 2, got %v", result["summaries_completed"])
		}
		if result["has_summary"] != false {
			t.Errorf("Expected has_summary false, got %v", result["has_summary"])
		}
	})

	mockStore.AssertExpectations(t)
}

func TestQueryHandler(t *testing.T) {
	validDocID := uuid.New()
	chunkID := uuid.New()

	tests := []struct {
		name       string
		body       string
		setup      func(*store.MockStore, *embeddings.MockEmbedder)
		wantStatus int
		checkBody  func(*testing.T, map[string]any)
	}{
		{
			name: "successful query",
			body: fmt.Sprintf(`{"question":"What is this about?","document_ids":[%q]}`, validDocID),
			setup: func(s *store.MockStore, e *embeddings.MockEmbedder) {
				e.On("Embed", mock.Anything, "What is this about?").
					Return(embeddings.Vector{0.5, 0.5}, nil).Once()
				s.On("TopK", mock.Anything, []uuid.UUID{validDocID}, embeddings.Vector{0.5, 0.5}, 5).
					Return([]store.SearchResult{
						{Chunk: store.Chunk{ID: chunkID, DocumentID: validDocID, Text: "relevant text", PrimaryPage: 3}, Score: 0.92},
					}, nil).Once()
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, result map[string]any) {
				sources, ok := result["sources"].([]any)
				if !ok || len(sources) != 1 {
					t.Fatalf("Expected 1 source, got %v", result["sources"])
				}
				src := sources[0].(map[string]any)
				if src["primary_page"].(float64) != 3 {
					t.Errorf("Expected primary_page 3, got %v", src["primary_page"])
				}
			},
		},
		{
			name:       "question too short",
			body:       fmt.Sprintf(`{"question":"hi","document_ids":[%q]}`, validDocID),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no document ids",
			body:       `{"question":"What is this about?","document_ids":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "embedder failure",
			body: fmt.Sprintf(`{"question":"What is this about?","document_ids":[%q]}`, validDocID),
			setup: func(s *store.MockStore, e *embeddings.MockEmbedder) {
				e.On("Embed", mock.Anything, mock.Anything).
					Return(embeddings.Vector(nil), errors.New("llm down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			mockEmbedder := new(embeddings.MockEmbedder)
			if tt.setup != nil {
				tt.setup(mockStore, mockEmbedder)
			}
			deps := newTestDeps(mockStore, new(queue.MockQueue), mockEmbedder, nil)
			handler := queryHandler(deps)

			req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			handler(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.checkBody != nil {
				var result map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				tt.checkBody(t, result)
			}
			mockStore.AssertExpectations(t)
			mockEmbedder.AssertExpectations(t)
		})
	}
}

func createMultipartRequest(filename string, content []byte) (*http.Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
