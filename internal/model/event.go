package model

import "time"

// EventType classifies a raw provider callback.
type EventType string

const (
	EventTypeOpen        EventType = "open"
	EventTypeClick       EventType = "click"
	EventTypeBounce      EventType = "bounce"
	EventTypeComplaint   EventType = "complaint"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// Event is an append-only record of a provider callback. Rows are never
// updated or deleted; they are the source of truth for health metrics
// and the human-facing timeline. NewsletterID/ContactID/ClientID are
// filled when the message id correlates to a known delivery and stay
// nil otherwise (callbacks may arrive before the ledger caught up).
type Event struct {
	ID                int64     `json:"id"`
	Provider          string    `json:"provider"`
	ProviderEventID   string    `json:"provider_event_id"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Type              EventType `json:"type"`
	NewsletterID      *int64    `json:"newsletter_id,omitempty"`
	ContactID         *int64    `json:"contact_id,omitempty"`
	ClientID          *int64    `json:"client_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
	Payload           []byte    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

func (Event) TableName() string { return "events" }

// RawEvent is an untrusted inbound webhook payload after minimal
// normalization by the provider-specific handler.
type RawEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderMessageID string
	Type              EventType
	OccurredAt        time.Time
	Payload           []byte
}
