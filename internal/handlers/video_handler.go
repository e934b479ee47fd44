package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/interfaces"
	"github.com/g2i/hub/internal/models"
	"github.com/g2i/hub/internal/queue/workers"
	"github.com/g2i/hub/internal/services/devskiller"
)

// VideoHandler accepts video resolution requests and serves the job records
// the worker writes as it progresses.
type VideoHandler struct {
	cookies *devskiller.CookieStore
	queue   interfaces.QueueManager
	logger  arbor.ILogger
}

func NewVideoHandler(cookies *devskiller.CookieStore, queue interfaces.QueueManager, logger arbor.ILogger) *VideoHandler {
	return &VideoHandler{
		cookies: cookies,
		queue:   queue,
		logger:  logger,
	}
}

// ResolveHandler validates the candidate page URL, records a processing
// entry, and enqueues the resolution job. Responds 202 with the identifiers
// the caller needs to poll for the result.
func (h *VideoHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	videoURL := r.URL.Query().Get("url")
	if videoURL == "" {
		WriteError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	candidateID, invitationID, err := devskiller.ExtractInvitationIDs(videoURL)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "url does not look like a candidate invitation page")
		return
	}

	ctx := r.Context()

	// The processing record must be durable before the response goes out,
	// otherwise an immediate status poll would 404.
	record := &models.VideoJobRecord{
		Status:       models.VideoJobProcessing,
		CandidateID:  candidateID,
		InvitationID: invitationID,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := h.cookies.SaveVideoJob(ctx, candidateID, invitationID, record); err != nil {
		h.logger.Error().Err(err).Msg("Failed to initialise video job record")
		WriteError(w, http.StatusInternalServerError, "failed to initialise video job")
		return
	}

	msg := interfaces.JobMessage{
		Type: workers.JobTypeVideoResolve,
		Payload: map[string]string{
			"url":           videoURL,
			"candidate_id":  candidateID,
			"invitation_id": invitationID,
		},
		DedupID: devskiller.VideoJobKey(candidateID, invitationID),
	}
	if err := h.queue.Enqueue(ctx, msg); err != nil {
		h.logger.Error().Err(err).Msg("Failed to enqueue video resolve job")
		WriteError(w, http.StatusInternalServerError, "failed to enqueue video job")
		return
	}

	h.logger.Info().
		Str("candidate_id", candidateID).
		Str("invitation_id", invitationID).
		Msg("Video resolution requested")

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":        "processing",
		"candidate_id":  candidateID,
		"invitation_id": invitationID,
	})
}

// StatusHandler serves /api/video/status/{candidate_id}/{invitation_id}
func (h *VideoHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/video/status/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		WriteError(w, http.StatusBadRequest, "expected /api/video/status/{candidate_id}/{invitation_id}")
		return
	}
	candidateID, invitationID := parts[0], parts[1]

	record, err := h.cookies.VideoJob(r.Context(), candidateID, invitationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "no video job found for this invitation")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read video job record")
		WriteError(w, http.StatusInternalServerError, "failed to read video job record")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
