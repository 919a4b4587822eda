package repository

import (
	"encoding/json"
	"time"

	"github.com/inkwire/dispatch/internal/model"
)

type SendJobEntity struct {
	ID           int64  `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	NewsletterID int64  `db:"newsletter_id"  gorm:"column:newsletter_id;not null;index"`
	ClientID     int64  `db:"client_id"      gorm:"column:client_id;not null;index"`
	Provider     string `db:"provider"       gorm:"column:provider;not null"`
	AudienceTag  string `db:"audience_tag"   gorm:"column:audience_tag"`
	// The uniqueness of (newsletter_id, idempotency_key) over non-canceled
	// rows is a partial index created in the migration, not a gorm tag.
	IdempotencyKey string     `db:"idempotency_key" gorm:"column:idempotency_key;not null"`
	Status         string     `db:"status"          gorm:"column:status;not null;default:queued;index"`
	Recipients     string     `db:"recipients"      gorm:"column:recipients"`
	ScheduledFor   time.Time  `db:"scheduled_for"   gorm:"column:scheduled_for;not null;index"`
	StartedAt      *time.Time `db:"started_at"      gorm:"column:started_at"`
	CompletedAt    *time.Time `db:"completed_at"    gorm:"column:completed_at"`
	Attempts       int        `db:"attempts"        gorm:"column:attempts;not null;default:0"`
	LastError      string     `db:"last_error"      gorm:"column:last_error"`
	CreatedAt      time.Time  `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

func (SendJobEntity) TableName() string { return "send_jobs" }

func toSendJobEntity(j *model.SendJob) *SendJobEntity {
	if j == nil {
		return nil
	}
	var recipients string
	if len(j.Recipients) > 0 {
		b, _ := json.Marshal(j.Recipients)
		recipients = string(b)
	}
	return &SendJobEntity{
		ID:             j.ID,
		NewsletterID:   j.NewsletterID,
		ClientID:       j.ClientID,
		Provider:       j.Provider,
		AudienceTag:    j.AudienceTag,
		IdempotencyKey: j.IdempotencyKey,
		Status:         string(j.Status),
		Recipients:     recipients,
		ScheduledFor:   j.ScheduledFor,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		Attempts:       j.Attempts,
		LastError:      j.LastError,
		CreatedAt:      j.CreatedAt,
	}
}

func toSendJobModel(e *SendJobEntity) *model.SendJob {
	if e == nil {
		return nil
	}
	var recipients []string
	if e.Recipients != "" {
		_ = json.Unmarshal([]byte(e.Recipients), &recipients)
	}
	return &model.SendJob{
		ID:             e.ID,
		NewsletterID:   e.NewsletterID,
		ClientID:       e.ClientID,
		Provider:       e.Provider,
		AudienceTag:    e.AudienceTag,
		IdempotencyKey: e.IdempotencyKey,
		Status:         model.SendJobStatus(e.Status),
		Recipients:     recipients,
		ScheduledFor:   e.ScheduledFor,
		StartedAt:      e.StartedAt,
		CompletedAt:    e.CompletedAt,
		Attempts:       e.Attempts,
		LastError:      e.LastError,
		CreatedAt:      e.CreatedAt,
	}
}

func toSendJobModels(entities []*SendJobEntity) []*model.SendJob {
	if entities == nil {
		return nil
	}
	models := make([]*model.SendJob, len(entities))
	for i, e := range entities {
		models[i] = toSendJobModel(e)
	}
	return models
}
