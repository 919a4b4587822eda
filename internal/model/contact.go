package model

import "time"

type ContactStatus string

const (
	ContactStatusActive       ContactStatus = "active"
	ContactStatusUnsubscribed ContactStatus = "unsubscribed"
	ContactStatusArchived     ContactStatus = "archived"
)

// AudienceTagAll selects every active contact of a client.
const AudienceTagAll = "all"

type Contact struct {
	ID        int64         `json:"id"`
	ClientID  int64         `json:"client_id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Status    ContactStatus `json:"status"`
	Tags      []string      `json:"tags"`
	CreatedAt time.Time     `json:"created_at"`
}

func (Contact) TableName() string { return "contacts" }
