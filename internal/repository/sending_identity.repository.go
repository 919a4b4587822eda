package repository

import (
	"context"
	"errors"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/pkg/pg"
	"gorm.io/gorm"
)

var ErrIdentityNotFound = errors.New("sending identity not found")

// SendingIdentityRepository stores per-client reputation state. The
// health monitor is the only automatic writer; preflight and the
// executor only read.
type SendingIdentityRepository struct {
	*pg.DB
}

func NewSendingIdentityRepository(db *pg.DB) *SendingIdentityRepository {
	return &SendingIdentityRepository{db}
}

func (r *SendingIdentityRepository) GetByID(ctx context.Context, id int64) (*model.SendingIdentity, error) {
	var entity SendingIdentityEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return toSendingIdentityModel(&entity), nil
}

func (r *SendingIdentityRepository) GetByClient(ctx context.Context, clientID int64) (*model.SendingIdentity, error) {
	var entity SendingIdentityEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "client_id = ?", clientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return toSendingIdentityModel(&entity), nil
}

// UpdateHealth writes the full reputation snapshot computed by the
// monitor. Last writer wins; transitions within a window are monotonic
// severity increases so racing recomputes are harmless.
func (r *SendingIdentityRepository) UpdateHealth(ctx context.Context, identity *model.SendingIdentity) error {
	return r.Write(ctx).WithContext(ctx).Model(&SendingIdentityEntity{}).
		Where("id = ?", identity.ID).
		Updates(map[string]interface{}{
			"quality_state":     string(identity.QualityState),
			"bounce_rate":       identity.BounceRate,
			"complaint_rate":    identity.ComplaintRate,
			"watch_since":       identity.WatchSince,
			"auto_paused_at":    identity.AutoPausedAt,
			"auto_pause_reason": identity.AutoPauseReason,
		}).Error
}

// Pause is the operator override into paused.
func (r *SendingIdentityRepository) Pause(ctx context.Context, id int64, reason string, now time.Time) error {
	return r.Write(ctx).WithContext(ctx).Model(&SendingIdentityEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quality_state":     string(model.QualityPaused),
			"auto_paused_at":    now,
			"auto_pause_reason": reason,
		}).Error
}

// Resume is the explicit operator recovery; paused identities never
// recover automatically.
func (r *SendingIdentityRepository) Resume(ctx context.Context, id int64) error {
	return r.Write(ctx).WithContext(ctx).Model(&SendingIdentityEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quality_state":     string(model.QualityHealthy),
			"watch_since":       nil,
			"auto_paused_at":    nil,
			"auto_pause_reason": "",
		}).Error
}

func (r *SendingIdentityRepository) Create(ctx context.Context, s *model.SendingIdentity) (*model.SendingIdentity, error) {
	entity := toSendingIdentityEntity(s)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toSendingIdentityModel(entity), nil
}
