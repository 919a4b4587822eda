package repository

import (
	"context"
	"errors"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/pkg/pg"
	"gorm.io/gorm"
)

var ErrNewsletterNotFound = errors.New("newsletter not found")

// NewsletterRepository is the engine's read-only view of the editor's
// content. Nothing here writes.
type NewsletterRepository struct {
	*pg.DB
}

func NewNewsletterRepository(db *pg.DB) *NewsletterRepository {
	return &NewsletterRepository{db}
}

func (r *NewsletterRepository) GetByID(ctx context.Context, id int64) (*model.Newsletter, error) {
	var entity NewsletterEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNewsletterNotFound
		}
		return nil, err
	}
	return toNewsletterModel(&entity), nil
}

// Create exists for seeding and tests; the editor owns newsletters in
// production.
func (r *NewsletterRepository) Create(ctx context.Context, n *model.Newsletter) (*model.Newsletter, error) {
	entity := toNewsletterEntity(n)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toNewsletterModel(entity), nil
}
