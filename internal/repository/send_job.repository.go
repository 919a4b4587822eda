package repository

import (
	"context"
	"errors"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrJobNotFound = errors.New("send job not found")
	// ErrJobNotCancelable is returned when a cancel races the executor and
	// the job already left the queued state.
	ErrJobNotCancelable = errors.New("send job is not in a cancelable state")
)

// SendJobRepository is the send job ledger. One row per accepted send,
// claimed exclusively by a single executor through a conditional update.
type SendJobRepository struct {
	*pg.DB
}

func NewSendJobRepository(db *pg.DB) *SendJobRepository {
	return &SendJobRepository{db}
}

// CreateOrGet inserts the job, or returns the existing non-canceled row
// for the same (newsletter_id, idempotency_key). The partial unique
// index makes the insert lose quietly on conflict; zero rows affected
// means a duplicate submit and we hand back the original. The returned
// bool reports whether a new row was created.
func (r *SendJobRepository) CreateOrGet(ctx context.Context, job *model.SendJob) (*model.SendJob, bool, error) {
	entity := toSendJobEntity(job)
	res := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entity)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return toSendJobModel(entity), true, nil
	}

	var existing SendJobEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("newsletter_id = ? AND idempotency_key = ? AND status <> ?",
			job.NewsletterID, job.IdempotencyKey, string(model.SendJobStatusCanceled)).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrJobNotFound
		}
		return nil, false, err
	}
	return toSendJobModel(&existing), false, nil
}

func (r *SendJobRepository) GetByID(ctx context.Context, id int64) (*model.SendJob, error) {
	var entity SendJobEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return toSendJobModel(&entity), nil
}

// DueJobs returns queued jobs whose scheduled time has passed, oldest
// schedule first. The scheduler feeds these to the queue; claiming is a
// separate step so two executors never execute the same job.
func (r *SendJobRepository) DueJobs(ctx context.Context, now time.Time, limit int) ([]*model.SendJob, error) {
	var entities []*SendJobEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", string(model.SendJobStatusQueued), now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toSendJobModels(entities), nil
}

// Claim moves a job from queued to processing if and only if it is still
// queued and due. Exactly one concurrent caller wins; the rest see
// false. A canceled job is unclaimable by construction.
func (r *SendJobRepository) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&SendJobEntity{}).
		Where("id = ? AND status = ? AND scheduled_for <= ?",
			id, string(model.SendJobStatusQueued), now).
		Updates(map[string]interface{}{
			"status":     string(model.SendJobStatusProcessing),
			"started_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SendJobRepository) Complete(ctx context.Context, id int64, now time.Time) error {
	return r.Write(ctx).WithContext(ctx).Model(&SendJobEntity{}).
		Where("id = ? AND status = ?", id, string(model.SendJobStatusProcessing)).
		Updates(map[string]interface{}{
			"status":       string(model.SendJobStatusCompleted),
			"completed_at": now,
			"last_error":   "",
		}).Error
}

// Fail is the only place attempts move: a claim that gets requeued
// (paused identity, lost wake-up) is not an attempt, a failed execution
// is.
func (r *SendJobRepository) Fail(ctx context.Context, id int64, reason string, now time.Time) error {
	return r.Write(ctx).WithContext(ctx).Model(&SendJobEntity{}).
		Where("id = ? AND status = ?", id, string(model.SendJobStatusProcessing)).
		Updates(map[string]interface{}{
			"status":       string(model.SendJobStatusFailed),
			"completed_at": now,
			"last_error":   reason,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
}

// Requeue puts a claimed job back in line with a new scheduled time.
// Used when the sending identity turns out to be paused: the job is not
// the operator's fault and should run once the pause lifts.
func (r *SendJobRepository) Requeue(ctx context.Context, id int64, next time.Time, reason string) error {
	return r.Write(ctx).WithContext(ctx).Model(&SendJobEntity{}).
		Where("id = ? AND status = ?", id, string(model.SendJobStatusProcessing)).
		Updates(map[string]interface{}{
			"status":        string(model.SendJobStatusQueued),
			"scheduled_for": next,
			"started_at":    nil,
			"last_error":    reason,
		}).Error
}

// Cancel succeeds only from queued. Once the executor claimed the job
// the messages may already be at the provider and pulling them back is
// not possible.
func (r *SendJobRepository) Cancel(ctx context.Context, id int64) (*model.SendJob, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&SendJobEntity{}).
		Where("id = ? AND status = ?", id, string(model.SendJobStatusQueued)).
		Update("status", string(model.SendJobStatusCanceled))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		job, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status == model.SendJobStatusCanceled {
			return job, nil
		}
		return job, ErrJobNotCancelable
	}
	return r.GetByID(ctx, id)
}

// LatestCompleted returns the most recent completed job for a
// newsletter. Retry fans out from its failed deliveries.
func (r *SendJobRepository) LatestCompleted(ctx context.Context, newsletterID int64) (*model.SendJob, error) {
	var entity SendJobEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("newsletter_id = ? AND status = ?", newsletterID, string(model.SendJobStatusCompleted)).
		Order("completed_at DESC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return toSendJobModel(&entity), nil
}

func (r *SendJobRepository) List(ctx context.Context, filter *model.SendJobFilter) ([]*model.SendJob, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&SendJobEntity{})

	if filter.NewsletterID != nil {
		q = q.Where("newsletter_id = ?", *filter.NewsletterID)
	}
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
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

	var entities []*SendJobEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return toSendJobModels(entities), nil
}
