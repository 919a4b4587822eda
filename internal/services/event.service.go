package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/repository"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/inkwire/dispatch/pkg/redis"
)

var ErrInvalidEvent = errors.New("event is missing provider or event id")

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	CountByClientSince(ctx context.Context, clientID int64, eventType model.EventType, since time.Time) (int64, error)
	ListByNewsletter(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.Event, error)
}

type EventDeliveryRepository interface {
	FindByMessageID(ctx context.Context, messageID string) (*model.Delivery, error)
	Transition(ctx context.Context, id int64, to model.DeliveryStatus) (bool, error)
}

type EventJobRepository interface {
	GetByID(ctx context.Context, id int64) (*model.SendJob, error)
}

type HealthRecomputer interface {
	Recompute(ctx context.Context, clientID int64) error
}

// EventService ingests raw provider callbacks. Ingest is idempotent:
// a redelivered event is detected by a redis marker first and by the
// unique provider event id in the database as the durable backstop.
// Ingest never rejects a payload for being uncorrelatable; providers
// retry rejected webhooks aggressively and an unmatched event is still
// worth keeping.
type EventService struct {
	events     EventRepository
	deliveries EventDeliveryRepository
	jobs       EventJobRepository
	contacts   ContactRepository
	health     HealthRecomputer
	cache      redis.RedisAdapter
	dedupeTTL  time.Duration
}

func NewEventService(
	events EventRepository,
	deliveries EventDeliveryRepository,
	jobs EventJobRepository,
	contacts ContactRepository,
	health HealthRecomputer,
	cache redis.RedisAdapter,
	dedupeTTL time.Duration,
) *EventService {
	if dedupeTTL == 0 {
		dedupeTTL = 72 * time.Hour
	}
	return &EventService{
		events:     events,
		deliveries: deliveries,
		jobs:       jobs,
		contacts:   contacts,
		health:     health,
		cache:      cache,
		dedupeTTL:  dedupeTTL,
	}
}

// Ingest records one callback and applies its side effects. Duplicate
// deliveries of the same provider event are absorbed silently.
func (s *EventService) Ingest(ctx context.Context, raw model.RawEvent) error {
	if raw.Provider == "" || raw.ProviderEventID == "" {
		return ErrInvalidEvent
	}
	if raw.OccurredAt.IsZero() {
		raw.OccurredAt = time.Now()
	}

	if s.cache != nil {
		fresh, err := s.cache.SetNX(dedupeKey(raw), []byte("1"), s.dedupeTTL)
		if err != nil {
			logger.Warn("event dedupe cache unavailable, falling back to database",
				"provider", raw.Provider, "error", err)
		} else if !fresh {
			return nil
		}
	}

	event := &model.Event{
		Provider:          raw.Provider,
		ProviderEventID:   raw.ProviderEventID,
		ProviderMessageID: raw.ProviderMessageID,
		Type:              raw.Type,
		OccurredAt:        raw.OccurredAt,
		Payload:           raw.Payload,
	}

	delivery := s.correlate(ctx, raw.ProviderMessageID)
	if delivery != nil {
		event.NewsletterID = &delivery.NewsletterID
		event.ContactID = delivery.ContactID
		if job, err := s.jobs.GetByID(ctx, delivery.JobID); err == nil {
			event.ClientID = &job.ClientID
		}
	}

	if _, err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			return nil
		}
		return fmt.Errorf("record event: %w", err)
	}

	s.applySideEffects(ctx, event, delivery)
	return nil
}

func (s *EventService) correlate(ctx context.Context, messageID string) *model.Delivery {
	if messageID == "" {
		return nil
	}
	delivery, err := s.deliveries.FindByMessageID(ctx, messageID)
	if err != nil {
		if !errors.Is(err, repository.ErrDeliveryNotFound) {
			logger.Warn("event correlation lookup failed", "message_id", messageID, "error", err)
		}
		return nil
	}
	return delivery
}

func (s *EventService) applySideEffects(ctx context.Context, event *model.Event, delivery *model.Delivery) {
	switch event.Type {
	case model.EventTypeBounce, model.EventTypeComplaint:
		// A complaint counts as a bounce on the delivery: the recipient
		// must not be mailed again through this list.
		if delivery != nil {
			if _, err := s.deliveries.Transition(ctx, delivery.ID, model.DeliveryStatusBounced); err != nil {
				logger.Error("failed to mark delivery bounced", "delivery_id", delivery.ID, "error", err)
			}
		}
		s.recomputeHealth(ctx, event)

	case model.EventTypeUnsubscribe:
		if delivery != nil {
			if _, err := s.deliveries.Transition(ctx, delivery.ID, model.DeliveryStatusUnsubscribed); err != nil {
				logger.Error("failed to mark delivery unsubscribed", "delivery_id", delivery.ID, "error", err)
			}
			if delivery.ContactID != nil {
				if err := s.contacts.MarkUnsubscribed(ctx, *delivery.ContactID); err != nil {
					logger.Error("failed to unsubscribe contact", "contact_id", *delivery.ContactID, "error", err)
				}
			}
		}
	}
}

func (s *EventService) recomputeHealth(ctx context.Context, event *model.Event) {
	if s.health == nil || event.ClientID == nil {
		return
	}
	if err := s.health.Recompute(ctx, *event.ClientID); err != nil {
		logger.Error("health recompute failed", "client_id", *event.ClientID, "error", err)
	}
}

func (s *EventService) ListByNewsletter(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.Event, error) {
	return s.events.ListByNewsletter(ctx, newsletterID, limit, offset)
}

func dedupeKey(raw model.RawEvent) string {
	return "events:seen:" + raw.Provider + ":" + raw.ProviderEventID
}
