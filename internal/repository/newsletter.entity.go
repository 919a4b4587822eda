package repository

import (
	"time"

	"github.com/inkwire/dispatch/internal/model"
)

type NewsletterEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	ClientID     int64     `db:"client_id"     gorm:"column:client_id;not null;index"`
	Subject      string    `db:"subject"       gorm:"column:subject"`
	PreviewText  string    `db:"preview_text"  gorm:"column:preview_text"`
	FromEmail    string    `db:"from_email"    gorm:"column:from_email"`
	ReplyTo      string    `db:"reply_to"      gorm:"column:reply_to"`
	RenderedHTML string    `db:"rendered_html" gorm:"column:rendered_html"`
	Status       string    `db:"status"        gorm:"column:status;not null;default:draft"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (NewsletterEntity) TableName() string { return "newsletters" }

func toNewsletterEntity(n *model.Newsletter) *NewsletterEntity {
	if n == nil {
		return nil
	}
	return &NewsletterEntity{
		ID:           n.ID,
		ClientID:     n.ClientID,
		Subject:      n.Subject,
		PreviewText:  n.PreviewText,
		FromEmail:    n.FromEmail,
		ReplyTo:      n.ReplyTo,
		RenderedHTML: n.RenderedHTML,
		Status:       string(n.Status),
		CreatedAt:    n.CreatedAt,
	}
}

func toNewsletterModel(e *NewsletterEntity) *model.Newsletter {
	if e == nil {
		return nil
	}
	return &model.Newsletter{
		ID:           e.ID,
		ClientID:     e.ClientID,
		Subject:      e.Subject,
		PreviewText:  e.PreviewText,
		FromEmail:    e.FromEmail,
		ReplyTo:      e.ReplyTo,
		RenderedHTML: e.RenderedHTML,
		Status:       model.NewsletterStatus(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}
