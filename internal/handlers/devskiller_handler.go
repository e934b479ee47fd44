package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/interfaces"
	"github.com/g2i/hub/internal/queue/workers"
	"github.com/g2i/hub/internal/services/devskiller"
)

// refreshDedupID keeps concurrent refresh triggers from stacking duplicate
// login jobs while one is still pending.
const refreshDedupID = "devskiller-cookie-refresh"

// DevSkillerHandler exposes the cookie refresh trigger and its status poll.
type DevSkillerHandler struct {
	cookies *devskiller.CookieStore
	queue   interfaces.QueueManager
	logger  arbor.ILogger
}

func NewDevSkillerHandler(cookies *devskiller.CookieStore, queue interfaces.QueueManager, logger arbor.ILogger) *DevSkillerHandler {
	return &DevSkillerHandler{
		cookies: cookies,
		queue:   queue,
		logger:  logger,
	}
}

// RefreshHandler enqueues a cookie refresh job and returns immediately. GET
// is accepted alongside POST as a convenience for manual triggering.
func (h *DevSkillerHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST", "GET") {
		return
	}

	ctx := r.Context()

	// Write the processing marker before enqueueing so a poll issued right
	// after this response never reports the previous run's result.
	if err := h.cookies.MarkProcessing(ctx); err != nil {
		h.logger.Error().Err(err).Msg("Failed to initialise refresh status")
		WriteError(w, http.StatusInternalServerError, "failed to initialise refresh status")
		return
	}

	msg := interfaces.JobMessage{
		Type:    workers.JobTypeCookieRefresh,
		DedupID: refreshDedupID,
	}
	if err := h.queue.Enqueue(ctx, msg); err != nil {
		h.logger.Error().Err(err).Msg("Failed to enqueue cookie refresh")
		WriteError(w, http.StatusInternalServerError, "failed to enqueue refresh job")
		return
	}

	h.logger.Info().Msg("Cookie refresh requested")
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "processing",
	})
}

// StatusHandler returns the latest cookie refresh status
func (h *DevSkillerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.cookies.Status(r.Context())
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "no cookie refresh status found")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read refresh status")
		WriteError(w, http.StatusInternalServerError, "failed to read refresh status")
		return
	}

	WriteJSON(w, http.StatusOK, status)
}
