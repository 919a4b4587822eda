package services

import (
	"context"
	"testing"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSendJobFixture() (*SendJobService, *MockSendJobRepository, *MockDeliveryRepository, *MockNewsletterRepository, *MockContactRepository, *MockIdentityRepository) {
	jobs := new(MockSendJobRepository)
	deliveries := new(MockDeliveryRepository)
	newsletters := new(MockNewsletterRepository)
	contacts := new(MockContactRepository)
	identities := new(MockIdentityRepository)
	registry := providers.NewRegistry(&stubAdapter{name: "resend", scheduling: true, batchLimit: 100})
	preflight := NewPreflightService(newsletters, contacts, identities, registry)
	svc := NewSendJobService(jobs, deliveries, preflight, nil)
	return svc, jobs, deliveries, newsletters, contacts, identities
}

func TestSendJobService_Submit(t *testing.T) {
	ctx := context.Background()
	audience := []*model.Contact{
		{ID: 1, ClientID: 10, Email: "a@example.com", Status: model.ContactStatusActive},
	}

	t.Run("clean submit creates a queued job", func(t *testing.T) {
		svc, jobs, _, newsletters, contacts, identities := newSendJobFixture()
		newsletters.On("GetByID", ctx, int64(1)).Return(approvedNewsletter(), nil)
		contacts.On("ResolveAudience", ctx, int64(10), "all").Return(audience, nil)
		identities.On("GetByClient", ctx, int64(10)).Return(healthyIdentity(), nil)
		jobs.On("CreateOrGet", ctx, mock.AnythingOfType("*model.SendJob")).
			Return(&model.SendJob{ID: 99, NewsletterID: 1, Status: model.SendJobStatusQueued}, true, nil)

		result, err := svc.Submit(ctx, model.SubmitRequest{
			NewsletterID:   1,
			Provider:       "resend",
			AudienceTag:    "all",
			IdempotencyKey: "send-1",
		})
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, int64(99), result.Job.ID)
		jobs.AssertExpectations(t)
	})

	t.Run("blocked preflight does not create a job", func(t *testing.T) {
		svc, jobs, _, newsletters, contacts, identities := newSendJobFixture()
		draft := approvedNewsletter()
		draft.Status = model.NewsletterStatusDraft
		newsletters.On("GetByID", ctx, int64(1)).Return(draft, nil)
		contacts.On("ResolveAudience", ctx, int64(10), "all").Return(audience, nil)
		identities.On("GetByClient", ctx, int64(10)).Return(healthyIdentity(), nil)

		result, err := svc.Submit(ctx, model.SubmitRequest{
			NewsletterID:   1,
			Provider:       "resend",
			AudienceTag:    "all",
			IdempotencyKey: "send-1",
		})
		assert.ErrorIs(t, err, ErrPreflightBlocked)
		require.NotNil(t, result)
		assert.Nil(t, result.Job)
		assert.False(t, result.Report.CanSend)
		jobs.AssertNotCalled(t, "CreateOrGet", mock.Anything, mock.Anything)
	})

	t.Run("duplicate submit replays the original job", func(t *testing.T) {
		svc, jobs, _, newsletters, contacts, identities := newSendJobFixture()
		newsletters.On("GetByID", ctx, int64(1)).Return(approvedNewsletter(), nil)
		contacts.On("ResolveAudience", ctx, int64(10), "all").Return(audience, nil)
		identities.On("GetByClient", ctx, int64(10)).Return(healthyIdentity(), nil)
		jobs.On("CreateOrGet", ctx, mock.AnythingOfType("*model.SendJob")).
			Return(&model.SendJob{ID: 42, NewsletterID: 1, Status: model.SendJobStatusProcessing}, false, nil)

		result, err := svc.Submit(ctx, model.SubmitRequest{
			NewsletterID:   1,
			Provider:       "resend",
			AudienceTag:    "all",
			IdempotencyKey: "send-1",
		})
		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Equal(t, int64(42), result.Job.ID)
	})

	t.Run("invalid request fails validation", func(t *testing.T) {
		svc, _, _, _, _, _ := newSendJobFixture()
		_, err := svc.Submit(ctx, model.SubmitRequest{NewsletterID: 1, Provider: "resend", AudienceTag: "all"})
		assert.Error(t, err)
	})
}

func TestSendJobService_RetryFailed(t *testing.T) {
	ctx := context.Background()
	audience := []*model.Contact{
		{ID: 1, ClientID: 10, Email: "a@example.com", Status: model.ContactStatusActive},
	}

	t.Run("retry submits a job restricted to failed recipients", func(t *testing.T) {
		svc, jobs, deliveries, newsletters, contacts, identities := newSendJobFixture()
		jobs.On("LatestCompleted", ctx, int64(1)).
			Return(&model.SendJob{ID: 7, NewsletterID: 1, Provider: "resend", AudienceTag: "all"}, nil)
		deliveries.On("ListFailedForJob", ctx, int64(7)).Return([]*model.Delivery{
			{ID: 100, Email: "failed@example.com", Status: model.DeliveryStatusFailed},
			{ID: 101, Email: "bounced@example.com", Status: model.DeliveryStatusBounced},
		}, nil)
		newsletters.On("GetByID", ctx, int64(1)).Return(approvedNewsletter(), nil)
		contacts.On("ResolveAudience", ctx, int64(10), "all").Return(audience, nil)
		identities.On("GetByClient", ctx, int64(10)).Return(healthyIdentity(), nil)

		var captured *model.SendJob
		jobs.On("CreateOrGet", ctx, mock.AnythingOfType("*model.SendJob")).
			Run(func(args mock.Arguments) { captured = args.Get(1).(*model.SendJob) }).
			Return(&model.SendJob{ID: 8, NewsletterID: 1, Status: model.SendJobStatusQueued}, true, nil)

		result, err := svc.RetryFailed(ctx, 1)
		require.NoError(t, err)
		assert.True(t, result.Created)
		require.NotNil(t, captured)
		assert.Equal(t, "retry:7", captured.IdempotencyKey)
		assert.Equal(t, []string{"failed@example.com", "bounced@example.com"}, captured.Recipients)
	})

	t.Run("nothing to retry", func(t *testing.T) {
		svc, jobs, deliveries, _, _, _ := newSendJobFixture()
		jobs.On("LatestCompleted", ctx, int64(1)).
			Return(&model.SendJob{ID: 7, NewsletterID: 1, Provider: "resend", AudienceTag: "all"}, nil)
		deliveries.On("ListFailedForJob", ctx, int64(7)).Return([]*model.Delivery{}, nil)

		_, err := svc.RetryFailed(ctx, 1)
		assert.ErrorIs(t, err, ErrNothingToRetry)
	})
}
