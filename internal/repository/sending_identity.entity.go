package repository

import (
	"time"

	"github.com/inkwire/dispatch/internal/model"
)

type SendingIdentityEntity struct {
	ID                int64      `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	ClientID          int64      `db:"client_id"          gorm:"column:client_id;not null;uniqueIndex"`
	Provider          string     `db:"provider"           gorm:"column:provider;not null"`
	SendingDomain     string     `db:"sending_domain"     gorm:"column:sending_domain"`
	VerificationState string     `db:"verification_state" gorm:"column:verification_state;not null;default:not_configured"`
	QualityState      string     `db:"quality_state"      gorm:"column:quality_state;not null;default:healthy"`
	BounceRate        float64    `db:"bounce_rate"        gorm:"column:bounce_rate;not null;default:0"`
	ComplaintRate     float64    `db:"complaint_rate"     gorm:"column:complaint_rate;not null;default:0"`
	WatchSince        *time.Time `db:"watch_since"        gorm:"column:watch_since"`
	AutoPausedAt      *time.Time `db:"auto_paused_at"     gorm:"column:auto_paused_at"`
	AutoPauseReason   string     `db:"auto_pause_reason"  gorm:"column:auto_pause_reason"`
	UpdatedAt         time.Time  `db:"updated_at"         gorm:"column:updated_at;autoUpdateTime"`
}

func (SendingIdentityEntity) TableName() string { return "sending_identities" }

func toSendingIdentityEntity(s *model.SendingIdentity) *SendingIdentityEntity {
	if s == nil {
		return nil
	}
	return &SendingIdentityEntity{
		ID:                s.ID,
		ClientID:          s.ClientID,
		Provider:          s.Provider,
		SendingDomain:     s.SendingDomain,
		VerificationState: string(s.VerificationState),
		QualityState:      string(s.QualityState),
		BounceRate:        s.BounceRate,
		ComplaintRate:     s.ComplaintRate,
		WatchSince:        s.WatchSince,
		AutoPausedAt:      s.AutoPausedAt,
		AutoPauseReason:   s.AutoPauseReason,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toSendingIdentityModel(e *SendingIdentityEntity) *model.SendingIdentity {
	if e == nil {
		return nil
	}
	return &model.SendingIdentity{
		ID:                e.ID,
		ClientID:          e.ClientID,
		Provider:          e.Provider,
		SendingDomain:     e.SendingDomain,
		VerificationState: model.VerificationState(e.VerificationState),
		QualityState:      model.QualityState(e.QualityState),
		BounceRate:        e.BounceRate,
		ComplaintRate:     e.ComplaintRate,
		WatchSince:        e.WatchSince,
		AutoPausedAt:      e.AutoPausedAt,
		AutoPauseReason:   e.AutoPauseReason,
		UpdatedAt:         e.UpdatedAt,
	}
}
