package services

import (
	"context"

	"github.com/inkwire/dispatch/internal/model"
)

type TimelineRepository interface {
	List(ctx context.Context, filter *model.DeliveryFilter) ([]*model.Delivery, error)
	TimelineForNewsletter(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.DeliveryWithEvents, error)
}

// DeliveryService is the read surface over the delivery ledger.
type DeliveryService struct {
	deliveries TimelineRepository
}

func NewDeliveryService(deliveries TimelineRepository) *DeliveryService {
	return &DeliveryService{deliveries: deliveries}
}

func (s *DeliveryService) List(ctx context.Context, filter *model.DeliveryFilter) ([]*model.Delivery, error) {
	return s.deliveries.List(ctx, filter)
}

// Timeline returns each delivery of a newsletter with its correlated
// provider events folded in.
func (s *DeliveryService) Timeline(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.DeliveryWithEvents, error) {
	return s.deliveries.TimelineForNewsletter(ctx, newsletterID, limit, offset)
}
