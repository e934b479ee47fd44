package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/services/docling"
)

// DocumentHandler fronts the document conversion proxy
type DocumentHandler struct {
	docling *docling.Service
	logger  arbor.ILogger
}

func NewDocumentHandler(service *docling.Service, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		docling: service,
		logger:  logger,
	}
}

// ConvertFileHandler proxies multipart file conversion requests
func (h *DocumentHandler) ConvertFileHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	h.docling.ConvertFile(w, r)
}

// ConvertSourceHandler proxies URL-based conversion requests
func (h *DocumentHandler) ConvertSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	h.docling.ConvertSource(w, r)
}

// ConvertSourceAsyncHandler proxies asynchronous conversion submissions
func (h *DocumentHandler) ConvertSourceAsyncHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	h.docling.ConvertSourceAsync(w, r)
}

// PollStatusHandler serves /api/document/status/poll/{task_id}
func (h *DocumentHandler) PollStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	taskID := strings.TrimPrefix(r.URL.Path, "/api/document/status/poll/")
	if taskID == "" || strings.Contains(taskID, "/") {
		WriteError(w, http.StatusBadRequest, "expected /api/document/status/poll/{task_id}")
		return
	}
	h.docling.PollStatus(w, r, taskID)
}

// ResultHandler serves /api/document/result/{task_id}
func (h *DocumentHandler) ResultHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	taskID := strings.TrimPrefix(r.URL.Path, "/api/document/result/")
	if taskID == "" || strings.Contains(taskID, "/") {
		WriteError(w, http.StatusBadRequest, "expected /api/document/result/{task_id}")
		return
	}
	h.docling.FetchResult(w, r, taskID)
}
