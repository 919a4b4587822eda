package repository

import (
	"context"
	"errors"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/pkg/pg"
	"gorm.io/gorm"
)

var ErrDeliveryNotFound = errors.New("delivery not found")

// DeliveryRepository is the per-recipient ledger. Rows move forward
// through the delivery state machine and are never rewritten; a retry
// adds new rows under a new job instead of resetting old ones.
type DeliveryRepository struct {
	*pg.DB
}

func NewDeliveryRepository(db *pg.DB) *DeliveryRepository {
	return &DeliveryRepository{db}
}

// CreateBatch inserts the queued rows for a job fan-out in one statement.
func (r *DeliveryRepository) CreateBatch(ctx context.Context, deliveries []*model.Delivery) ([]*model.Delivery, error) {
	if len(deliveries) == 0 {
		return nil, nil
	}
	entities := make([]*DeliveryEntity, len(deliveries))
	for i, d := range deliveries {
		entities[i] = toDeliveryEntity(d)
	}
	if err := r.Write(ctx).WithContext(ctx).Create(&entities).Error; err != nil {
		return nil, err
	}
	return toDeliveryModels(entities), nil
}

// MarkAccepted records the provider acknowledgement: queued -> sent plus
// the message id used to correlate later callbacks.
func (r *DeliveryRepository) MarkAccepted(ctx context.Context, id int64, messageID string, now time.Time) error {
	return r.Write(ctx).WithContext(ctx).Model(&DeliveryEntity{}).
		Where("id = ? AND status = ?", id, string(model.DeliveryStatusQueued)).
		Updates(map[string]interface{}{
			"status":              string(model.DeliveryStatusSent),
			"provider_message_id": messageID,
			"sent_at":             now,
		}).Error
}

// MarkRejected records a synchronous provider rejection: queued -> failed.
func (r *DeliveryRepository) MarkRejected(ctx context.Context, id int64, reason string) error {
	return r.Write(ctx).WithContext(ctx).Model(&DeliveryEntity{}).
		Where("id = ? AND status = ?", id, string(model.DeliveryStatusQueued)).
		Updates(map[string]interface{}{
			"status": string(model.DeliveryStatusFailed),
			"error":  reason,
		}).Error
}

func (r *DeliveryRepository) FindByMessageID(ctx context.Context, messageID string) (*model.Delivery, error) {
	var entity DeliveryEntity
	err := r.Read(ctx).WithContext(ctx).
		First(&entity, "provider_message_id = ?", messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}
	return toDeliveryModel(&entity), nil
}

// Transition applies a callback-driven status change, guarded by the
// allowed predecessor set. A callback that arrives out of order or twice
// affects zero rows and reports false, which is not an error.
func (r *DeliveryRepository) Transition(ctx context.Context, id int64, to model.DeliveryStatus) (bool, error) {
	from := model.DeliveryPredecessors(to)
	if len(from) == 0 {
		return false, nil
	}
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}
	res := r.Write(ctx).WithContext(ctx).Model(&DeliveryEntity{}).
		Where("id = ? AND status IN ?", id, statuses).
		Update("status", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFailedForJob returns the failed and bounced recipients of a job,
// the fan-out set for a retry.
func (r *DeliveryRepository) ListFailedForJob(ctx context.Context, jobID int64) ([]*model.Delivery, error) {
	var entities []*DeliveryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("job_id = ? AND status IN ?", jobID, []string{
			string(model.DeliveryStatusFailed),
			string(model.DeliveryStatusBounced),
		}).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toDeliveryModels(entities), nil
}

func (r *DeliveryRepository) List(ctx context.Context, filter *model.DeliveryFilter) ([]*model.Delivery, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DeliveryEntity{})

	if filter.JobID != nil {
		q = q.Where("job_id = ?", *filter.JobID)
	}
	if filter.NewsletterID != nil {
		q = q.Where("newsletter_id = ?", *filter.NewsletterID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}

	order := "id ASC"
	if filter.Desc {
		order = "id DESC"
	}
	q = q.Order(order)

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var entities []*DeliveryEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return toDeliveryModels(entities), nil
}

// CountSentSince counts deliveries acknowledged by the provider for one
// client inside the trailing health window. The denominator for bounce
// and complaint rates.
func (r *DeliveryRepository) CountSentSince(ctx context.Context, clientID int64, since time.Time) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&DeliveryEntity{}).
		Joins("JOIN send_jobs ON send_jobs.id = deliveries.job_id").
		Where("send_jobs.client_id = ?", clientID).
		Where("deliveries.status IN ?", []string{
			string(model.DeliveryStatusSent),
			string(model.DeliveryStatusBounced),
			string(model.DeliveryStatusUnsubscribed),
		}).
		Where("deliveries.sent_at >= ?", since).
		Count(&count).Error
	return count, err
}

// TimelineForNewsletter builds the delivery timeline in one query,
// folding correlated events into a json array per delivery. Postgres
// only; the aggregate is not available on other dialects.
func (r *DeliveryRepository) TimelineForNewsletter(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.DeliveryWithEvents, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []*deliveryTimelineRow
	err := r.Read(ctx).WithContext(ctx).Raw(`
		SELECT d.id,
		       d.job_id,
		       d.newsletter_id,
		       d.email,
		       d.provider_message_id,
		       d.status,
		       d.sent_at,
		       d.created_at,
		       COALESCE(
		           (SELECT json_agg(json_build_object(
		                'id', e.id,
		                'provider', e.provider,
		                'provider_event_id', e.provider_event_id,
		                'provider_message_id', e.provider_message_id,
		                'type', e.event_type,
		                'occurred_at', e.occurred_at,
		                'created_at', e.created_at
		            ) ORDER BY e.occurred_at ASC)
		            FROM events e
		            WHERE e.provider_message_id = d.provider_message_id
		              AND d.provider_message_id <> ''),
		           '[]'::json
		       ) AS events
		FROM deliveries d
		WHERE d.newsletter_id = ?
		ORDER BY d.id ASC
		LIMIT ? OFFSET ?`, newsletterID, limit, offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.DeliveryWithEvents, 0, len(rows))
	for _, row := range rows {
		item, err := toDeliveryWithEvents(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
