package model

import "time"

// NewsletterStatus is the editorial lifecycle state of a newsletter. The
// engine only reads it; the editor workflow owns the transitions.
type NewsletterStatus string

const (
	NewsletterStatusDraft     NewsletterStatus = "draft"
	NewsletterStatusInReview  NewsletterStatus = "in_review"
	NewsletterStatusApproved  NewsletterStatus = "approved"
	NewsletterStatusScheduled NewsletterStatus = "scheduled"
	NewsletterStatusSent      NewsletterStatus = "sent"
)

// Newsletter is the content snapshot supplied by the editor. The engine
// never mutates the content fields.
type Newsletter struct {
	ID           int64            `json:"id"`
	ClientID     int64            `json:"client_id"`
	Subject      string           `json:"subject"`
	PreviewText  string           `json:"preview_text"`
	FromEmail    string           `json:"from_email"`
	ReplyTo      string           `json:"reply_to"`
	RenderedHTML string           `json:"-"`
	Status       NewsletterStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (Newsletter) TableName() string { return "newsletters" }

// Sendable reports whether the editorial state allows a send.
func (n *Newsletter) Sendable() bool {
	return n.Status == NewsletterStatusApproved || n.Status == NewsletterStatusScheduled
}
