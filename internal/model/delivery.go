package model

import "time"

// DeliveryStatus is the per-recipient delivery state. Status only moves
// forward along queued -> sent -> {bounced|unsubscribed} or
// queued -> failed; history is never rewritten, retries create new rows.
type DeliveryStatus string

const (
	DeliveryStatusQueued       DeliveryStatus = "queued"
	DeliveryStatusSent         DeliveryStatus = "sent"
	DeliveryStatusFailed       DeliveryStatus = "failed"
	DeliveryStatusBounced      DeliveryStatus = "bounced"
	DeliveryStatusUnsubscribed DeliveryStatus = "unsubscribed"
)

// deliveryPredecessors maps a status to the states it may be entered
// from. Bounce and unsubscribe callbacks may overtake the provider
// acknowledgement, so queued is an allowed predecessor for both.
var deliveryPredecessors = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusSent:         {DeliveryStatusQueued},
	DeliveryStatusFailed:       {DeliveryStatusQueued},
	DeliveryStatusBounced:      {DeliveryStatusQueued, DeliveryStatusSent},
	DeliveryStatusUnsubscribed: {DeliveryStatusQueued, DeliveryStatusSent},
}

// DeliveryPredecessors returns the states a delivery may transition to
// `to` from. An empty slice means `to` is never a transition target.
func DeliveryPredecessors(to DeliveryStatus) []DeliveryStatus {
	return deliveryPredecessors[to]
}

// Delivery is one recipient of one job execution.
type Delivery struct {
	ID                int64          `json:"id"`
	JobID             int64          `json:"job_id"`
	NewsletterID      int64          `json:"newsletter_id"`
	ContactID         *int64         `json:"contact_id,omitempty"` // nil for ad-hoc test sends
	Email             string         `json:"email"`
	AudienceTag       string         `json:"audience_tag"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Status            DeliveryStatus `json:"status"`
	Error             string         `json:"error,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (Delivery) TableName() string { return "deliveries" }

// DeliveryFilter controls delivery list queries.
type DeliveryFilter struct {
	JobID        *int64
	NewsletterID *int64
	Statuses     []DeliveryStatus
	Limit        int
	Offset       int
	Desc         bool
}

// DeliveryWithEvents is the timeline read model: a delivery plus the raw
// provider events correlated to it by message id.
type DeliveryWithEvents struct {
	ID                int64          `json:"id"`
	JobID             int64          `json:"job_id"`
	NewsletterID      int64          `json:"newsletter_id"`
	Email             string         `json:"email"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Status            DeliveryStatus `json:"status"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	Events            []*Event       `json:"events"`
}
