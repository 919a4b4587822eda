package repository

import (
	"encoding/json"
	"time"

	"github.com/inkwire/dispatch/internal/model"
)

type DeliveryEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	JobID             int64      `db:"job_id"              gorm:"column:job_id;not null;index"`
	NewsletterID      int64      `db:"newsletter_id"       gorm:"column:newsletter_id;not null;index"`
	ContactID         *int64     `db:"contact_id"          gorm:"column:contact_id"`
	Email             string     `db:"email"               gorm:"column:email;not null"`
	AudienceTag       string     `db:"audience_tag"        gorm:"column:audience_tag"`
	ProviderMessageID string     `db:"provider_message_id" gorm:"column:provider_message_id;index"`
	Status            string     `db:"status"              gorm:"column:status;not null;default:queued;index"`
	Error             string     `db:"error"               gorm:"column:error"`
	SentAt            *time.Time `db:"sent_at"             gorm:"column:sent_at"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (DeliveryEntity) TableName() string { return "deliveries" }

func toDeliveryEntity(d *model.Delivery) *DeliveryEntity {
	if d == nil {
		return nil
	}
	return &DeliveryEntity{
		ID:                d.ID,
		JobID:             d.JobID,
		NewsletterID:      d.NewsletterID,
		ContactID:         d.ContactID,
		Email:             d.Email,
		AudienceTag:       d.AudienceTag,
		ProviderMessageID: d.ProviderMessageID,
		Status:            string(d.Status),
		Error:             d.Error,
		SentAt:            d.SentAt,
		CreatedAt:         d.CreatedAt,
	}
}

func toDeliveryModel(e *DeliveryEntity) *model.Delivery {
	if e == nil {
		return nil
	}
	return &model.Delivery{
		ID:                e.ID,
		JobID:             e.JobID,
		NewsletterID:      e.NewsletterID,
		ContactID:         e.ContactID,
		Email:             e.Email,
		AudienceTag:       e.AudienceTag,
		ProviderMessageID: e.ProviderMessageID,
		Status:            model.DeliveryStatus(e.Status),
		Error:             e.Error,
		SentAt:            e.SentAt,
		CreatedAt:         e.CreatedAt,
	}
}

func toDeliveryModels(entities []*DeliveryEntity) []*model.Delivery {
	if entities == nil {
		return nil
	}
	models := make([]*model.Delivery, len(entities))
	for i, e := range entities {
		models[i] = toDeliveryModel(e)
	}
	return models
}

// deliveryTimelineRow is the scan target for the aggregated timeline
// query; events arrive as a json document built by the database.
type deliveryTimelineRow struct {
	ID                int64      `db:"id"`
	JobID             int64      `db:"job_id"`
	NewsletterID      int64      `db:"newsletter_id"`
	Email             string     `db:"email"`
	ProviderMessageID string     `db:"provider_message_id"`
	Status            string     `db:"status"`
	SentAt            *time.Time `db:"sent_at"`
	CreatedAt         time.Time  `db:"created_at"`
	Events            []byte     `db:"events"`
}

func toDeliveryWithEvents(row *deliveryTimelineRow) (*model.DeliveryWithEvents, error) {
	out := &model.DeliveryWithEvents{
		ID:                row.ID,
		JobID:             row.JobID,
		NewsletterID:      row.NewsletterID,
		Email:             row.Email,
		ProviderMessageID: row.ProviderMessageID,
		Status:            model.DeliveryStatus(row.Status),
		SentAt:            row.SentAt,
		CreatedAt:         row.CreatedAt,
		Events:            []*model.Event{},
	}
	if len(row.Events) > 0 {
		if err := json.Unmarshal(row.Events, &out.Events); err != nil {
			return nil, err
		}
	}
	return out, nil
}
