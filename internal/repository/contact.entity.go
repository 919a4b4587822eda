package repository

import (
	"time"

	"github.com/inkwire/dispatch/internal/model"
)

type ContactEntity struct {
	ID        int64               `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ClientID  int64               `db:"client_id"  gorm:"column:client_id;not null;index"`
	Email     string              `db:"email"      gorm:"column:email;not null"`
	Name      string              `db:"name"       gorm:"column:name"`
	Status    string              `db:"status"     gorm:"column:status;not null;default:active;index"`
	Tags      []*ContactTagEntity `gorm:"foreignKey:ContactID"`
	CreatedAt time.Time           `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ContactEntity) TableName() string { return "contacts" }

// ContactTagEntity is one audience tag on one contact. A join table
// instead of an array column keeps tag lookups portable across
// postgres and the sqlite test databases.
type ContactTagEntity struct {
	ID        int64  `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ContactID int64  `db:"contact_id" gorm:"column:contact_id;not null;index"`
	Tag       string `db:"tag"        gorm:"column:tag;not null;index"`
}

func (ContactTagEntity) TableName() string { return "contact_tags" }

func toContactEntity(c *model.Contact) *ContactEntity {
	if c == nil {
		return nil
	}
	e := &ContactEntity{
		ID:        c.ID,
		ClientID:  c.ClientID,
		Email:     c.Email,
		Name:      c.Name,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
	}
	for _, tag := range c.Tags {
		e.Tags = append(e.Tags, &ContactTagEntity{ContactID: c.ID, Tag: tag})
	}
	return e
}

func toContactModel(e *ContactEntity) *model.Contact {
	if e == nil {
		return nil
	}
	m := &model.Contact{
		ID:        e.ID,
		ClientID:  e.ClientID,
		Email:     e.Email,
		Name:      e.Name,
		Status:    model.ContactStatus(e.Status),
		CreatedAt: e.CreatedAt,
	}
	for _, tag := range e.Tags {
		m.Tags = append(m.Tags, tag.Tag)
	}
	return m
}

func toContactModels(entities []*ContactEntity) []*model.Contact {
	if entities == nil {
		return nil
	}
	models := make([]*model.Contact, len(entities))
	for i, e := range entities {
		models[i] = toContactModel(e)
	}
	return models
}
