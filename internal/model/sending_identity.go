package model

import "time"

// VerificationState tracks the provider-side domain/sender verification.
type VerificationState string

const (
	VerificationNotConfigured VerificationState = "not_configured"
	VerificationPending       VerificationState = "pending"
	VerificationVerified      VerificationState = "verified"
	VerificationFailed        VerificationState = "failed"
)

// QualityState is the reputation circuit-breaker state of an identity.
// Severity only increases automatically; leaving paused is an operator
// action.
type QualityState string

const (
	QualityHealthy QualityState = "healthy"
	QualityWatch   QualityState = "watch"
	QualityPaused  QualityState = "paused"
)

// SendingIdentity is the per-client sending configuration and reputation
// state. One per client; written only by the health monitor or an
// operator override.
type SendingIdentity struct {
	ID                int64             `json:"id"`
	ClientID          int64             `json:"client_id"`
	Provider          string            `json:"provider"`
	SendingDomain     string            `json:"sending_domain"`
	VerificationState VerificationState `json:"verification_state"`
	QualityState      QualityState      `json:"quality_state"`
	BounceRate        float64           `json:"bounce_rate"`
	ComplaintRate     float64           `json:"complaint_rate"`
	WatchSince        *time.Time        `json:"watch_since,omitempty"`
	AutoPausedAt      *time.Time        `json:"auto_paused_at,omitempty"`
	AutoPauseReason   string            `json:"auto_pause_reason,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (SendingIdentity) TableName() string { return "sending_identities" }
