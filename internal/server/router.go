package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sujitmandava/chronicle/internal/api"
	"github.com/sujitmandava/chronicle/internal/api/handlers"
	"github.com/sujitmandava/chronicle/internal/api/middleware"
)

type RouterConfig struct {
	IngestHandler   *handlers.IngestHandler
	RetrieveHandler *handlers.RetrieveHandler
	PromptHandler   *handlers.PromptHandler
	UploadHandler   *handlers.UploadHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ingest", cfg.IngestHandler.Ingest)
	r.Post("/retrieve", cfg.RetrieveHandler.Retrieve)
	r.Post("/prompt", cfg.PromptHandler.Prompt)
	r.Post("/upload", cfg.UploadHandler.Upload)

	return r
}
