package repository

import (
	"context"
	"errors"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/pkg/pg"
	"gorm.io/gorm/clause"
)

// ErrDuplicateEvent marks a callback the ledger already holds. Providers
// redeliver webhooks freely, so this is an expected outcome, not a
// failure.
var ErrDuplicateEvent = errors.New("event already recorded")

// EventRepository is the append-only callback ledger. The unique index
// on provider_event_id is the durable dedupe backstop behind the fast
// redis marker.
type EventRepository struct {
	*pg.DB
}

func NewEventRepository(db *pg.DB) *EventRepository {
	return &EventRepository{db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	entity := toEventEntity(event)
	res := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entity)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicateEvent
	}
	return toEventModel(entity), nil
}

// CountByClientSince counts correlated events of one type inside the
// trailing health window. Uncorrelated events carry no client id and
// never count against anyone.
func (r *EventRepository) CountByClientSince(ctx context.Context, clientID int64, eventType model.EventType, since time.Time) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&EventEntity{}).
		Where("client_id = ?", clientID).
		Where("event_type = ?", string(eventType)).
		Where("occurred_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *EventRepository) ListByNewsletter(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*EventEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("newsletter_id = ?", newsletterID).
		Order("occurred_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toEventModels(entities), nil
}
