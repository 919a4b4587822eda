package model

import (
	"errors"
	"time"
)

// SendJobStatus is the lifecycle state of a send job.
type SendJobStatus string

const (
	SendJobStatusQueued     SendJobStatus = "queued"
	SendJobStatusProcessing SendJobStatus = "processing"
	SendJobStatusCompleted  SendJobStatus = "completed"
	SendJobStatusFailed     SendJobStatus = "failed"
	SendJobStatusCanceled   SendJobStatus = "canceled"
)

// SendJob is one delivery attempt for one newsletter. At most one
// non-canceled job exists per (NewsletterID, IdempotencyKey); a repeated
// submit under a flaky network resolves to the same row.
type SendJob struct {
	ID             int64         `json:"id"`
	NewsletterID   int64         `json:"newsletter_id"`
	ClientID       int64         `json:"client_id"`
	Provider       string        `json:"provider"`
	AudienceTag    string        `json:"audience_tag"`
	IdempotencyKey string        `json:"idempotency_key"`
	Status         SendJobStatus `json:"status"`
	// Recipients restricts the fan-out to an explicit email list. Set by
	// retry jobs; empty means resolve the audience tag.
	Recipients   []string   `json:"recipients,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	// Attempts counts failed executions; claims and requeue cycles do
	// not move it.
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (SendJob) TableName() string { return "send_jobs" }

func (j *SendJob) Terminal() bool {
	switch j.Status {
	case SendJobStatusCompleted, SendJobStatusFailed, SendJobStatusCanceled:
		return true
	}
	return false
}

// SubmitRequest is the input for submitting a send or schedule.
type SubmitRequest struct {
	NewsletterID   int64
	Provider       string
	AudienceTag    string
	IdempotencyKey string
	ScheduledFor   *time.Time
	Recipients     []string
}

func (r SubmitRequest) Validate() error {
	if r.NewsletterID == 0 {
		return errors.New("newsletter_id is required")
	}
	if r.Provider == "" {
		return errors.New("provider is required")
	}
	if r.AudienceTag == "" && len(r.Recipients) == 0 {
		return errors.New("audience_tag is required")
	}
	if r.IdempotencyKey == "" {
		return errors.New("idempotency_key is required")
	}
	return nil
}

// SendJobFilter controls job list queries.
type SendJobFilter struct {
	NewsletterID *int64
	ClientID     *int64
	Statuses     []SendJobStatus
	Limit        int
	Offset       int
	Desc         bool
}
