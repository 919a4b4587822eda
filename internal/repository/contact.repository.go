package repository

import (
	"context"
	"strings"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/pkg/pg"
)

// ContactRepository is the audience source: it resolves an audience tag
// into the deduplicated set of active recipients for a client.
type ContactRepository struct {
	*pg.DB
}

func NewContactRepository(db *pg.DB) *ContactRepository {
	return &ContactRepository{db}
}

// ResolveAudience returns the active contacts of a client matching the
// audience tag, deduplicated by lowercase email. Unsubscribed and
// archived contacts are always excluded.
func (r *ContactRepository) ResolveAudience(ctx context.Context, clientID int64, tag string) ([]*model.Contact, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ContactEntity{}).
		Where("contacts.client_id = ?", clientID).
		Where("contacts.status = ?", string(model.ContactStatusActive))

	if tag != model.AudienceTagAll {
		q = q.Joins("JOIN contact_tags ON contact_tags.contact_id = contacts.id").
			Where("contact_tags.tag = ?", tag)
	}

	var entities []*ContactEntity
	if err := q.Order("contacts.id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}

	return dedupeByEmail(toContactModels(entities)), nil
}

// ResolveEmails returns the still-active contacts among the given email
// addresses. Used by retry to drop recipients who unsubscribed between
// the original send and the retry.
func (r *ContactRepository) ResolveEmails(ctx context.Context, clientID int64, emails []string) ([]*model.Contact, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}

	var entities []*ContactEntity
	err := r.Read(ctx).WithContext(ctx).Model(&ContactEntity{}).
		Where("client_id = ?", clientID).
		Where("status = ?", string(model.ContactStatusActive)).
		Where("LOWER(email) IN ?", lowered).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	return dedupeByEmail(toContactModels(entities)), nil
}

// MarkUnsubscribed flips a contact out of the sendable pool. Applied on
// unsubscribe events so later audience resolutions exclude them.
func (r *ContactRepository) MarkUnsubscribed(ctx context.Context, contactID int64) error {
	return r.Write(ctx).WithContext(ctx).Model(&ContactEntity{}).
		Where("id = ? AND status <> ?", contactID, string(model.ContactStatusUnsubscribed)).
		Update("status", string(model.ContactStatusUnsubscribed)).Error
}

func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	entity := toContactEntity(c)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toContactModel(entity), nil
}

func dedupeByEmail(contacts []*model.Contact) []*model.Contact {
	seen := make(map[string]bool, len(contacts))
	result := make([]*model.Contact, 0, len(contacts))
	for _, c := range contacts {
		key := strings.ToLower(strings.TrimSpace(c.Email))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, c)
	}
	return result
}
