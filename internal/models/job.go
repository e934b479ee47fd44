package models

import "time"

// RefreshState describes the shared cookie refresh status record.
type RefreshState string

const (
	RefreshIdle       RefreshState = "idle"
	RefreshProcessing RefreshState = "processing"
	RefreshComplete   RefreshState = "complete"
	RefreshError      RefreshState = "error"
)

// RefreshStatus is the caller-visible cookie refresh record, assembled from
// the independent status/timestamp/error keys in the credential store.
type RefreshStatus struct {
	Status      RefreshState `json:"status"`
	LastUpdated string       `json:"last_updated,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// VideoJobState describes a video resolution job's lifecycle.
type VideoJobState string

const (
	VideoJobProcessing VideoJobState = "processing"
	VideoJobComplete   VideoJobState = "complete"
	VideoJobError      VideoJobState = "error"
)

// VideoJobRecord is the per-job status blob stored under
// video:{candidate_id}:{invitation_id}. Created on enqueue, mutated once by
// the worker on completion, read-only afterward until its TTL expires.
type VideoJobRecord struct {
	Status       VideoJobState `json:"status"`
	URL          string        `json:"url,omitempty"`
	Error        string        `json:"error,omitempty"`
	CandidateID  string        `json:"candidate_id,omitempty"`
	InvitationID string        `json:"invitation_id,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
}
