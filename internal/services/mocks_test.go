package services

import (
	"context"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockNewsletterRepository struct {
	mock.Mock
}

func (m *MockNewsletterRepository) GetByID(ctx context.Context, id int64) (*model.Newsletter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Newsletter), args.Error(1)
}

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) ResolveAudience(ctx context.Context, clientID int64, tag string) ([]*model.Contact, error) {
	args := m.Called(ctx, clientID, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Contact), args.Error(1)
}

func (m *MockContactRepository) ResolveEmails(ctx context.Context, clientID int64, emails []string) ([]*model.Contact, error) {
	args := m.Called(ctx, clientID, emails)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Contact), args.Error(1)
}

func (m *MockContactRepository) MarkUnsubscribed(ctx context.Context, contactID int64) error {
	args := m.Called(ctx, contactID)
	return args.Error(0)
}

type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id int64) (*model.SendingIdentity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendingIdentity), args.Error(1)
}

func (m *MockIdentityRepository) GetByClient(ctx context.Context, clientID int64) (*model.SendingIdentity, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendingIdentity), args.Error(1)
}

func (m *MockIdentityRepository) UpdateHealth(ctx context.Context, identity *model.SendingIdentity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockIdentityRepository) Pause(ctx context.Context, id int64, reason string, now time.Time) error {
	args := m.Called(ctx, id, reason, now)
	return args.Error(0)
}

func (m *MockIdentityRepository) Resume(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockSendJobRepository struct {
	mock.Mock
}

func (m *MockSendJobRepository) CreateOrGet(ctx context.Context, job *model.SendJob) (*model.SendJob, bool, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.SendJob), args.Bool(1), args.Error(2)
}

func (m *MockSendJobRepository) GetByID(ctx context.Context, id int64) (*model.SendJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendJob), args.Error(1)
}

func (m *MockSendJobRepository) Cancel(ctx context.Context, id int64) (*model.SendJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendJob), args.Error(1)
}

func (m *MockSendJobRepository) LatestCompleted(ctx context.Context, newsletterID int64) (*model.SendJob, error) {
	args := m.Called(ctx, newsletterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendJob), args.Error(1)
}

func (m *MockSendJobRepository) List(ctx context.Context, filter *model.SendJobFilter) ([]*model.SendJob, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SendJob), args.Error(1)
}

type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) ListFailedForJob(ctx context.Context, jobID int64) ([]*model.Delivery, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) List(ctx context.Context, filter *model.DeliveryFilter) ([]*model.Delivery, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) FindByMessageID(ctx context.Context, messageID string) (*model.Delivery, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) Transition(ctx context.Context, id int64, to model.DeliveryStatus) (bool, error) {
	args := m.Called(ctx, id, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryRepository) CountSentSince(ctx context.Context, clientID int64, since time.Time) (int64, error) {
	args := m.Called(ctx, clientID, since)
	return args.Get(0).(int64), args.Error(1)
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) CountByClientSince(ctx context.Context, clientID int64, eventType model.EventType, since time.Time) (int64, error) {
	args := m.Called(ctx, clientID, eventType, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEventRepository) ListByNewsletter(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.Event, error) {
	args := m.Called(ctx, newsletterID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Event), args.Error(1)
}

type MockHealthRecomputer struct {
	mock.Mock
}

func (m *MockHealthRecomputer) Recompute(ctx context.Context, clientID int64) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}
