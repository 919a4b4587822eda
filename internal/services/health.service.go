package services

import (
	"context"
	"fmt"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/pkg/logger"
)

type HealthIdentityRepository interface {
	GetByID(ctx context.Context, id int64) (*model.SendingIdentity, error)
	GetByClient(ctx context.Context, clientID int64) (*model.SendingIdentity, error)
	UpdateHealth(ctx context.Context, identity *model.SendingIdentity) error
	Pause(ctx context.Context, id int64, reason string, now time.Time) error
	Resume(ctx context.Context, id int64) error
}

type HealthDeliveryRepository interface {
	CountSentSince(ctx context.Context, clientID int64, since time.Time) (int64, error)
}

type HealthEventRepository interface {
	CountByClientSince(ctx context.Context, clientID int64, eventType model.EventType, since time.Time) (int64, error)
}

// HealthThresholds are the circuit-breaker limits over the trailing
// window. Soft limits move an identity to watch, hard limits (or a
// watch that outlives the grace period without improving) pause it.
type HealthThresholds struct {
	Window         time.Duration
	BounceWatch    float64
	BouncePause    float64
	ComplaintWatch float64
	ComplaintPause float64
	WatchGrace     time.Duration
	MinSample      int64
}

// HealthService recomputes sending identity reputation from the event
// ledger. Severity only ever increases automatically; recovery out of
// paused is an operator decision, not a computation.
type HealthService struct {
	identities HealthIdentityRepository
	deliveries HealthDeliveryRepository
	events     HealthEventRepository
	thresholds HealthThresholds
}

func NewHealthService(
	identities HealthIdentityRepository,
	deliveries HealthDeliveryRepository,
	events HealthEventRepository,
	thresholds HealthThresholds,
) *HealthService {
	if thresholds.Window == 0 {
		thresholds.Window = 7 * 24 * time.Hour
	}
	if thresholds.WatchGrace == 0 {
		thresholds.WatchGrace = 24 * time.Hour
	}
	if thresholds.MinSample <= 0 {
		thresholds.MinSample = 1
	}
	return &HealthService{
		identities: identities,
		deliveries: deliveries,
		events:     events,
		thresholds: thresholds,
	}
}

// Recompute refreshes the identity of one client from the trailing
// window. Small samples are skipped so two bounces out of three sends
// do not pause a brand new identity.
func (s *HealthService) Recompute(ctx context.Context, clientID int64) error {
	identity, err := s.identities.GetByClient(ctx, clientID)
	if err != nil {
		return err
	}
	if identity.QualityState == model.QualityPaused {
		return nil
	}

	now := time.Now()
	since := now.Add(-s.thresholds.Window)

	sent, err := s.deliveries.CountSentSince(ctx, clientID, since)
	if err != nil {
		return fmt.Errorf("count sent deliveries: %w", err)
	}
	// An empty window has no rates at all; never divide by zero sends.
	if sent == 0 || sent < s.thresholds.MinSample {
		return nil
	}

	bounces, err := s.events.CountByClientSince(ctx, clientID, model.EventTypeBounce, since)
	if err != nil {
		return fmt.Errorf("count bounces: %w", err)
	}
	complaints, err := s.events.CountByClientSince(ctx, clientID, model.EventTypeComplaint, since)
	if err != nil {
		return fmt.Errorf("count complaints: %w", err)
	}

	identity.BounceRate = float64(bounces) / float64(sent)
	identity.ComplaintRate = float64(complaints) / float64(sent)

	switch {
	case identity.BounceRate >= s.thresholds.BouncePause:
		s.pause(identity, now, fmt.Sprintf("bounce rate %.2f%% over pause threshold", identity.BounceRate*100))
	case identity.ComplaintRate >= s.thresholds.ComplaintPause:
		s.pause(identity, now, fmt.Sprintf("complaint rate %.3f%% over pause threshold", identity.ComplaintRate*100))
	case identity.BounceRate >= s.thresholds.BounceWatch || identity.ComplaintRate >= s.thresholds.ComplaintWatch:
		if identity.QualityState == model.QualityWatch && identity.WatchSince != nil &&
			now.Sub(*identity.WatchSince) >= s.thresholds.WatchGrace {
			s.pause(identity, now, "rates stayed elevated past the watch grace period")
		} else if identity.QualityState == model.QualityHealthy {
			identity.QualityState = model.QualityWatch
			identity.WatchSince = &now
			logger.Warn("sending identity moved to watch",
				"client_id", clientID,
				"bounce_rate", identity.BounceRate,
				"complaint_rate", identity.ComplaintRate)
		}
	default:
		// Watch recovers to healthy on its own once rates drop; only
		// paused requires an operator.
		if identity.QualityState == model.QualityWatch {
			identity.QualityState = model.QualityHealthy
			identity.WatchSince = nil
			logger.Info("sending identity recovered to healthy", "client_id", clientID)
		}
	}

	return s.identities.UpdateHealth(ctx, identity)
}

func (s *HealthService) pause(identity *model.SendingIdentity, now time.Time, reason string) {
	if identity.QualityState == model.QualityPaused {
		return
	}
	identity.QualityState = model.QualityPaused
	identity.AutoPausedAt = &now
	identity.AutoPauseReason = reason
	logger.Error("sending identity auto-paused",
		"client_id", identity.ClientID,
		"reason", reason,
		"bounce_rate", identity.BounceRate,
		"complaint_rate", identity.ComplaintRate)
}

func (s *HealthService) GetIdentity(ctx context.Context, id int64) (*model.SendingIdentity, error) {
	return s.identities.GetByID(ctx, id)
}

func (s *HealthService) GetIdentityByClient(ctx context.Context, clientID int64) (*model.SendingIdentity, error) {
	return s.identities.GetByClient(ctx, clientID)
}

// PauseIdentity is the operator override.
func (s *HealthService) PauseIdentity(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		reason = "paused by operator"
	}
	return s.identities.Pause(ctx, id, reason, time.Now())
}

// ResumeIdentity clears the pause and resets the breaker to healthy.
func (s *HealthService) ResumeIdentity(ctx context.Context, id int64) error {
	return s.identities.Resume(ctx, id)
}
