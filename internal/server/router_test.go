package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sujitmandava/chronicle/internal/api/handlers"
	"github.com/sujitmandava/chronicle/internal/domain"
	"github.com/sujitmandava/chronicle/internal/service"
)

type stubIngestService struct{}

func (stubIngestService) Ingest(ctx context.Context, docID, text, source string) (*domain.IngestStats, error) {
	return &domain.IngestStats{}, nil
}

type stubPromptService struct{}

func (stubPromptService) Answer(ctx context.Context, prompt string) (*service.PromptResult, error) {
	return &service.PromptResult{Response: "ok"}, nil
}

func newTestRouter() http.Handler {
	ingest := stubIngestService{}
	return NewRouter(RouterConfig{
		IngestHandler:   handlers.NewIngestHandler(ingest),
		RetrieveHandler: handlers.NewRetrieveHandler(service.NoOpRetriever{}),
		PromptHandler:   handlers.NewPromptHandler(stubPromptService{}),
		UploadHandler:   handlers.NewUploadHandler(ingest),
	})
}

func TestRouter(t *testing.T) {
	t.Run("health endpoint responds ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"status":"ok"}}`, rec.Body.String())
	})

	t.Run("responses carry a request ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("routes are wired", func(t *testing.T) {
		for _, route := range []string{"/ingest", "/retrieve", "/prompt"} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, route, strings.NewReader(`{}`))
			newTestRouter().ServeHTTP(rec, req)
			assert.NotEqual(t, http.StatusNotFound, rec.Code, route)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code, route)
		}
	})

	t.Run("unknown route is a 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
