package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sujitmandava/chronicle/internal/domain"
	"github.com/sujitmandava/chronicle/internal/service"
)

// MockIngestService is a mock implementation of IngestService
type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Ingest(ctx context.Context, docID, text, source string) (*domain.IngestStats, error) {
	args := m.Called(ctx, docID, text, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestStats), args.Error(1)
}

// MockRetrieveService is a mock implementation of RetrieveService
type MockRetrieveService struct {
	mock.Mock
}

func (m *MockRetrieveService) Retrieve(ctx context.Context, input service.RetrieveInput) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalResult), args.Error(1)
}

// MockPromptService is a mock implementation of PromptService
type MockPromptService struct {
	mock.Mock
}

func (m *MockPromptService) Answer(ctx context.Context, prompt string) (*service.PromptResult, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PromptResult), args.Error(1)
}

// MockArchiver is a mock implementation of DocumentArchiver
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Archive(ctx context.Context, docID string, data []byte, contentType string) error {
	args := m.Called(ctx, docID, data, contentType)
	return args.Error(0)
}

func decodeData(t *testing.T, body *bytes.Buffer, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeError(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &envelope))
	return envelope.Error
}

func TestIngestHandler(t *testing.T) {
	t.Run("returns ingestion stats", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "d1", "hello", "api").Return(&domain.IngestStats{
			Added:       2,
			TotalChunks: 2,
			Duration:    1500 * time.Microsecond,
		}, nil)

		handler := NewIngestHandler(mockSvc)
		req := httptest.NewRequest(http.MethodPost, "/ingest",
			strings.NewReader(`{"doc_id":"d1","text":"hello","source":"api"}`))
		rec := httptest.NewRecorder()

		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp IngestResponse
		decodeData(t, rec.Body, &resp)
		assert.Equal(t, 2, resp.Added)
		assert.Equal(t, 0, resp.Updated)
		assert.Equal(t, 2, resp.TotalChunks)
		assert.InDelta(t, 1.5, resp.DurationMS, 1e-9)
		mockSvc.AssertExpectations(t)
	})

	t.Run("maps validation errors to 400", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "", "hello", "").Return(nil, domain.ErrEmptyDocID)

		handler := NewIngestHandler(mockSvc)
		req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"text":"hello"}`))
		rec := httptest.NewRecorder()

		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec.Body), "document ID must not be empty")
	})

	t.Run("maps upstream errors to 502", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "d1", "hello", "").
			Return(nil, domain.NewUpstreamError("embedding provider failed", nil))

		handler := NewIngestHandler(mockSvc)
		req := httptest.NewRequest(http.MethodPost, "/ingest",
			strings.NewReader(`{"doc_id":"d1","text":"hello"}`))
		rec := httptest.NewRecorder()

		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler := NewIngestHandler(new(MockIngestService))
		req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()

		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRetrieveHandler(t *testing.T) {
	t.Run("passes request fields through and formats results", func(t *testing.T) {
		updatedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		mockSvc := new(MockRetrieveService)
		mockSvc.On("Retrieve", mock.Anything, mock.MatchedBy(func(input service.RetrieveInput) bool {
			return input.Query == "how" && input.TopK == 3 &&
				input.MaxAgeDays != nil && *input.MaxAgeDays == 30
		})).Return([]domain.RetrievalResult{{
			ChunkID:       "d1_0",
			DocID:         "d1",
			Text:          "chunk",
			Similarity:    0.9,
			Score:         0.85,
			LastUpdatedAt: updatedAt,
		}}, nil)

		handler := NewRetrieveHandler(mockSvc)
		req := httptest.NewRequest(http.MethodPost, "/retrieve",
			strings.NewReader(`{"query":"how","top_k":3,"max_age_days":30}`))
		rec := httptest.NewRecorder()

		handler.Retrieve(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp RetrieveResponse
		decodeData(t, rec.Body, &resp)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "d1_0", resp.Results[0].ChunkID)
		assert.Equal(t, 0.85, resp.Results[0].Score)
		assert.Equal(t, "2026-02-01T12:00:00Z", resp.Results[0].LastUpdatedAt)
		assert.Empty(t, resp.Results[0].CreatedAt)
		mockSvc.AssertExpectations(t)
	})

	t.Run("omitted max_age_days stays nil", func(t *testing.T) {
		mockSvc := new(MockRetrieveService)
		mockSvc.On("Retrieve", mock.Anything, mock.MatchedBy(func(input service.RetrieveInput) bool {
			return input.MaxAgeDays == nil
		})).Return([]domain.RetrievalResult{}, nil)

		handler := NewRetrieveHandler(mockSvc)
		req := httptest.NewRequest(http.MethodPost, "/retrieve", strings.NewReader(`{"query":"how"}`))
		rec := httptest.NewRecorder()

		handler.Retrieve(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp RetrieveResponse
		decodeData(t, rec.Body, &resp)
		assert.Empty(t, resp.Results)
		mockSvc.AssertExpectations(t)
	})
}

func TestPromptHandler(t *testing.T) {
	t.Run("returns response with warning", func(t *testing.T) {
		mockSvc := new(MockPromptService)
		mockSvc.On("Answer", mock.Anything, "what changed?").Return(&service.PromptResult{
			Response: "the answer",
			Warning:  "stale data",
		}, nil)

		handler := NewPromptHandler(mockSvc)
		req := httptest.NewRequest(http.MethodPost, "/prompt",
			strings.NewReader(`{"prompt":"what changed?"}`))
		rec := httptest.NewRecorder()

		handler.Prompt(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp PromptResponse
		decodeData(t, rec.Body, &resp)
		assert.Equal(t, "the answer", resp.Response)
		assert.Equal(t, "stale data", resp.Warning)
	})

	t.Run("rejects blank prompt", func(t *testing.T) {
		handler := NewPromptHandler(new(MockPromptService))
		req := httptest.NewRequest(http.MethodPost, "/prompt", strings.NewReader(`{"prompt":"   "}`))
		rec := httptest.NewRecorder()

		handler.Prompt(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "prompt must not be empty", decodeError(t, rec.Body))
	})
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	t.Run("ingests the uploaded file with explicit doc_id", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "d1", "file content", "notes.txt").
			Return(&domain.IngestStats{Added: 1, TotalChunks: 1}, nil)

		handler := NewUploadHandler(mockSvc)
		body, contentType := multipartBody(t, map[string]string{"doc_id": "d1"}, "notes.txt", "file content")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("falls back to filename as doc_id", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "notes.txt", "file content", "notes.txt").
			Return(&domain.IngestStats{Added: 1, TotalChunks: 1}, nil)

		handler := NewUploadHandler(mockSvc)
		body, contentType := multipartBody(t, nil, "notes.txt", "file content")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("replaces invalid UTF-8 bytes", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "d1", "ab�cd", "f.bin").
			Return(&domain.IngestStats{Added: 1, TotalChunks: 1}, nil)

		handler := NewUploadHandler(mockSvc)
		body, contentType := multipartBody(t, map[string]string{"doc_id": "d1"}, "f.bin", "ab\xffcd")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing file is a 400", func(t *testing.T) {
		handler := NewUploadHandler(new(MockIngestService))
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("archives raw bytes after successful ingestion", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "d1", "raw bytes", "f.txt").
			Return(&domain.IngestStats{Added: 1, TotalChunks: 1}, nil)
		mockArchiver := new(MockArchiver)
		mockArchiver.On("Archive", mock.Anything, "d1", []byte("raw bytes"), mock.Anything).Return(nil)

		handler := NewUploadHandlerWithArchive(mockSvc, mockArchiver)
		body, contentType := multipartBody(t, map[string]string{"doc_id": "d1"}, "f.txt", "raw bytes")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockArchiver.AssertExpectations(t)
	})

	t.Run("archive failure does not fail the upload", func(t *testing.T) {
		mockSvc := new(MockIngestService)
		mockSvc.On("Ingest", mock.Anything, "d1", "raw bytes", "f.txt").
			Return(&domain.IngestStats{Added: 1, TotalChunks: 1}, nil)
		mockArchiver := new(MockArchiver)
		mockArchiver.On("Archive", mock.Anything, "d1", mock.Anything, mock.Anything).
			Return(assert.AnError)

		handler := NewUploadHandlerWithArchive(mockSvc, mockArchiver)
		body, contentType := multipartBody(t, map[string]string{"doc_id": "d1"}, "f.txt", "raw bytes")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
