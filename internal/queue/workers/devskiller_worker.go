package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/interfaces"
	"github.com/g2i/hub/internal/models"
	"github.com/g2i/hub/internal/services/devskiller"
)

const (
	// JobTypeCookieRefresh performs a fresh browser login and replaces the
	// shared cookie jar.
	JobTypeCookieRefresh = "devskiller_cookie_refresh"
	// JobTypeVideoResolve resolves a protected video page to a direct link.
	JobTypeVideoResolve = "devskiller_video_resolve"
)

// DevSkillerWorker executes the queued DevSkiller jobs and records their
// outcome in the credential store so status polls can observe progress.
type DevSkillerWorker struct {
	auth    devskiller.Authenticator
	videos  *devskiller.VideoService
	cookies *devskiller.CookieStore
	logger  arbor.ILogger
}

// NewDevSkillerWorker creates a worker with its service dependencies
func NewDevSkillerWorker(auth devskiller.Authenticator, videos *devskiller.VideoService, cookies *devskiller.CookieStore, logger arbor.ILogger) *DevSkillerWorker {
	return &DevSkillerWorker{
		auth:    auth,
		videos:  videos,
		cookies: cookies,
		logger:  logger,
	}
}

// HandleCookieRefresh runs a full login and stores the resulting jar. The
// status record is written on every path so a poller never sees a stale
// "processing" after the job finishes.
func (w *DevSkillerWorker) HandleCookieRefresh(ctx context.Context, msg *interfaces.JobMessage) error {
	w.logger.Info().Str("message_id", msg.ID).Msg("Starting cookie refresh")

	if err := w.cookies.MarkProcessing(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to mark refresh as processing")
	}

	if _, err := w.auth.Login(ctx); err != nil {
		w.recordRefreshError(ctx, err)
		return fmt.Errorf("cookie refresh failed: %w", err)
	}

	if err := w.cookies.MarkComplete(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to mark refresh as complete")
	}

	w.logger.Info().Str("message_id", msg.ID).Msg("Cookie refresh complete")
	return nil
}

// HandleVideoResolve resolves the download link for the video page carried in
// the message payload and records the result keyed by candidate/invitation.
func (w *DevSkillerWorker) HandleVideoResolve(ctx context.Context, msg *interfaces.JobMessage) error {
	videoURL := msg.Payload["url"]
	candidateID := msg.Payload["candidate_id"]
	invitationID := msg.Payload["invitation_id"]
	if videoURL == "" || candidateID == "" || invitationID == "" {
		return fmt.Errorf("video resolve message %s missing url or identifiers", msg.ID)
	}

	w.logger.Info().
		Str("message_id", msg.ID).
		Str("candidate_id", candidateID).
		Str("invitation_id", invitationID).
		Msg("Starting video resolve")

	link, err := w.videos.ResolveVideo(ctx, videoURL)
	if err != nil {
		w.recordVideoError(ctx, candidateID, invitationID, err)
		return fmt.Errorf("video resolve failed: %w", err)
	}

	record := &models.VideoJobRecord{
		Status:       models.VideoJobComplete,
		URL:          link,
		CandidateID:  candidateID,
		InvitationID: invitationID,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := w.cookies.SaveVideoJob(ctx, candidateID, invitationID, record); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to save video job result")
		return err
	}

	w.logger.Info().
		Str("message_id", msg.ID).
		Str("candidate_id", candidateID).
		Msg("Video resolve complete")
	return nil
}

func (w *DevSkillerWorker) recordRefreshError(ctx context.Context, err error) {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "cookie refresh timed out"
	}
	// Record with a fresh context so a cancelled job context cannot block
	// the status write.
	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if markErr := w.cookies.MarkError(recordCtx, msg); markErr != nil {
		w.logger.Warn().Err(markErr).Msg("Failed to record refresh error")
	}
}

func (w *DevSkillerWorker) recordVideoError(ctx context.Context, candidateID, invitationID string, err error) {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "video resolution timed out"
	}
	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := &models.VideoJobRecord{
		Status:       models.VideoJobError,
		Error:        msg,
		CandidateID:  candidateID,
		InvitationID: invitationID,
		UpdatedAt:    time.Now().UTC(),
	}
	if saveErr := w.cookies.SaveVideoJob(recordCtx, candidateID, invitationID, record); saveErr != nil {
		w.logger.Warn().Err(saveErr).Msg("Failed to record video job error")
	}
}
