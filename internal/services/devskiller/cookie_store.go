package devskiller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/interfaces"
	"github.com/g2i/hub/internal/models"
)

// Credential store key layout. Each key is updated independently - there is
// no cross-key snapshot, so a poller may see "processing" with a stale
// last_updated while a refresh is mid-flight.
const (
	KeyCookies     = "cookies"
	KeyStatus      = "cookies_status"
	KeyLastUpdated = "cookies_last_updated"
	KeyError       = "cookies_error"
)

const (
	// CookieTTL bounds how long a persisted jar is trusted
	DefaultCookieTTL = 48 * time.Hour

	// VideoJobTTL bounds how long a per-job status record stays pollable
	VideoJobTTL = time.Hour
)

// CookieStore wraps the shared credential store with the cookie jar, refresh
// status, and per-job record layout.
type CookieStore struct {
	store  interfaces.CredentialStore
	ttl    time.Duration
	logger arbor.ILogger
}

// NewCookieStore creates a cookie store with the given jar TTL
func NewCookieStore(store interfaces.CredentialStore, ttl time.Duration, logger arbor.ILogger) *CookieStore {
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}
	return &CookieStore{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Jar loads the current cookie jar. Returns interfaces.ErrKeyNotFound when no
// jar is cached or the TTL elapsed.
func (s *CookieStore) Jar(ctx context.Context) (models.CookieJar, error) {
	raw, err := s.store.Get(ctx, KeyCookies)
	if err != nil {
		return nil, err
	}

	var jar models.CookieJar
	if err := json.Unmarshal([]byte(raw), &jar); err != nil {
		return nil, fmt.Errorf("failed to decode stored cookie jar: %w", err)
	}
	return jar, nil
}

// SaveJar atomically replaces the cached jar. Partial jars are rejected so a
// failed login can never poison the cache.
func (s *CookieStore) SaveJar(ctx context.Context, jar models.CookieJar) error {
	if len(jar) == 0 {
		return fmt.Errorf("refusing to persist empty cookie jar")
	}
	if err := jar.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid cookie jar: %w", err)
	}

	data, err := json.Marshal(jar)
	if err != nil {
		return fmt.Errorf("failed to encode cookie jar: %w", err)
	}

	if err := s.store.Set(ctx, KeyCookies, string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to persist cookie jar: %w", err)
	}

	s.logger.Info().Int("cookies", len(jar)).Msg("Cookie jar persisted")
	return nil
}

// MarkProcessing records the start of a refresh and clears the previous
// completion timestamp so pollers see an in-progress state.
func (s *CookieStore) MarkProcessing(ctx context.Context) error {
	if err := s.store.Set(ctx, KeyStatus, string(models.RefreshProcessing), s.ttl); err != nil {
		return err
	}
	return s.store.Delete(ctx, KeyLastUpdated)
}

// MarkComplete records a successful refresh
func (s *CookieStore) MarkComplete(ctx context.Context) error {
	if err := s.store.Set(ctx, KeyStatus, string(models.RefreshComplete), s.ttl); err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyLastUpdated, time.Now().UTC().Format(time.RFC3339), s.ttl); err != nil {
		return err
	}
	return s.store.Delete(ctx, KeyError)
}

// MarkError records a failed refresh with its message
func (s *CookieStore) MarkError(ctx context.Context, msg string) error {
	if err := s.store.Set(ctx, KeyStatus, string(models.RefreshError), s.ttl); err != nil {
		return err
	}
	return s.store.Set(ctx, KeyError, msg, s.ttl)
}

// Status assembles the refresh status record from its independent keys.
// Returns interfaces.ErrKeyNotFound when no refresh has ever run.
func (s *CookieStore) Status(ctx context.Context) (*models.RefreshStatus, error) {
	status, err := s.store.Get(ctx, KeyStatus)
	if err != nil {
		return nil, err
	}

	result := &models.RefreshStatus{Status: models.RefreshState(status)}

	if lastUpdated, err := s.store.Get(ctx, KeyLastUpdated); err == nil {
		result.LastUpdated = lastUpdated
	}
	if errMsg, err := s.store.Get(ctx, KeyError); err == nil {
		result.Error = errMsg
	}

	return result, nil
}

// SaveVideoJob writes a per-job status record, overwriting any prior record
// for the same key. Records expire after VideoJobTTL.
func (s *CookieStore) SaveVideoJob(ctx context.Context, candidateID, invitationID string, record *models.VideoJobRecord) error {
	record.CandidateID = candidateID
	record.InvitationID = invitationID
	record.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode video job record: %w", err)
	}

	key := VideoJobKey(candidateID, invitationID)
	if err := s.store.Set(ctx, key, string(data), VideoJobTTL); err != nil {
		return fmt.Errorf("failed to persist video job record: %w", err)
	}
	return nil
}

// VideoJob loads a per-job status record. An expired or never-created record
// returns interfaces.ErrKeyNotFound - callers must treat that as "unknown",
// never as "failed".
func (s *CookieStore) VideoJob(ctx context.Context, candidateID, invitationID string) (*models.VideoJobRecord, error) {
	raw, err := s.store.Get(ctx, VideoJobKey(candidateID, invitationID))
	if err != nil {
		return nil, err
	}

	var record models.VideoJobRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to decode video job record: %w", err)
	}
	return &record, nil
}

// HasJar reports whether a usable jar is cached
func (s *CookieStore) HasJar(ctx context.Context) bool {
	_, err := s.store.Get(ctx, KeyCookies)
	return !errors.Is(err, interfaces.ErrKeyNotFound) && err == nil
}
