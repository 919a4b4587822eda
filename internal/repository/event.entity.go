package repository

import (
	"time"

	"github.com/inkwire/dispatch/internal/model"
)

type EventEntity struct {
	ID                int64     `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	Provider          string    `db:"provider"            gorm:"column:provider;not null"`
	ProviderEventID   string    `db:"provider_event_id"   gorm:"column:provider_event_id;not null;uniqueIndex"`
	ProviderMessageID string    `db:"provider_message_id" gorm:"column:provider_message_id;index"`
	EventType         string    `db:"event_type"          gorm:"column:event_type;not null;index"`
	NewsletterID      *int64    `db:"newsletter_id"       gorm:"column:newsletter_id;index"`
	ContactID         *int64    `db:"contact_id"          gorm:"column:contact_id"`
	ClientID          *int64    `db:"client_id"           gorm:"column:client_id;index"`
	OccurredAt        time.Time `db:"occurred_at"         gorm:"column:occurred_at;not null;index"`
	Payload           []byte    `db:"payload"             gorm:"column:payload"`
	CreatedAt         time.Time `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (EventEntity) TableName() string { return "events" }

func toEventEntity(e *model.Event) *EventEntity {
	if e == nil {
		return nil
	}
	return &EventEntity{
		ID:                e.ID,
		Provider:          e.Provider,
		ProviderEventID:   e.ProviderEventID,
		ProviderMessageID: e.ProviderMessageID,
		EventType:         string(e.Type),
		NewsletterID:      e.NewsletterID,
		ContactID:         e.ContactID,
		ClientID:          e.ClientID,
		OccurredAt:        e.OccurredAt,
		Payload:           e.Payload,
		CreatedAt:         e.CreatedAt,
	}
}

func toEventModel(e *EventEntity) *model.Event {
	if e == nil {
		return nil
	}
	return &model.Event{
		ID:                e.ID,
		Provider:          e.Provider,
		ProviderEventID:   e.ProviderEventID,
		ProviderMessageID: e.ProviderMessageID,
		Type:              model.EventType(e.EventType),
		NewsletterID:      e.NewsletterID,
		ContactID:         e.ContactID,
		ClientID:          e.ClientID,
		OccurredAt:        e.OccurredAt,
		Payload:           e.Payload,
		CreatedAt:         e.CreatedAt,
	}
}

func toEventModels(entities []*EventEntity) []*model.Event {
	if entities == nil {
		return nil
	}
	models := make([]*model.Event, len(entities))
	for i, e := range entities {
		models[i] = toEventModel(e)
	}
	return models
}
