package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sujitmandava/chronicle/internal/api"
)

// DocumentArchiver stores the raw bytes of uploaded documents in object
// storage. Archival is best-effort; failures do not fail the upload.
type DocumentArchiver interface {
	Archive(ctx context.Context, docID string, data []byte, contentType string) error
}

type UploadHandler struct {
	svc     IngestService
	archive DocumentArchiver
}

func NewUploadHandler(svc IngestService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// NewUploadHandlerWithArchive creates an upload handler that also archives
// raw uploads.
func NewUploadHandlerWithArchive(svc IngestService, archive DocumentArchiver) *UploadHandler {
	return &UploadHandler{svc: svc, archive: archive}
}

// Upload handles POST /upload: a multipart file plus optional doc_id and
// source form fields. The doc_id falls back to the filename, then to a
// timestamped placeholder.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	docID := r.FormValue("doc_id")
	if docID == "" {
		docID = header.Filename
	}
	if docID == "" {
		docID = fmt.Sprintf("upload-%d", time.Now().Unix())
	}

	source := r.FormValue("source")
	if source == "" {
		source = header.Filename
	}

	// Invalid UTF-8 bytes are replaced rather than rejected.
	text := strings.ToValidUTF8(string(data), "�")

	stats, err := h.svc.Ingest(r.Context(), docID, text, source)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if h.archive != nil {
		contentType := header.Header.Get("Content-Type")
		if err := h.archive.Archive(r.Context(), docID, data, contentType); err != nil {
			log.Printf("upload: failed to archive raw document %q: %v", docID, err)
		}
	}

	api.Success(w, http.StatusOK, toIngestResponse(stats))
}
