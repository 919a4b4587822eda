package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockPreflightService struct {
	mock.Mock
}

func (m *MockPreflightService) Evaluate(ctx context.Context, req services.PreflightRequest) (*model.QAReport, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QAReport), args.Error(1)
}

type MockSendJobService struct {
	mock.Mock
}

func (m *MockSendJobService) Submit(ctx context.Context, req model.SubmitRequest) (*services.SubmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmitResult), args.Error(1)
}

func (m *MockSendJobService) RetryFailed(ctx context.Context, newsletterID int64) (*services.SubmitResult, error) {
	args := m.Called(ctx, newsletterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmitResult), args.Error(1)
}

func (m *MockSendJobService) ListJobs(ctx context.Context, filter *model.SendJobFilter) ([]*model.SendJob, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SendJob), args.Error(1)
}

type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) Timeline(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.DeliveryWithEvents, error) {
	args := m.Called(ctx, newsletterID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DeliveryWithEvents), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func newNewsletterHandler() (*NewsletterHandler, *MockPreflightService, *MockSendJobService, *MockDeliveryService) {
	preflight := new(MockPreflightService)
	jobs := new(MockSendJobService)
	deliveries := new(MockDeliveryService)
	return NewNewsletterHandler(preflight, jobs, deliveries), preflight, jobs, deliveries
}

func TestNewsletterHandler_Preflight(t *testing.T) {
	t.Run("returns the report", func(t *testing.T) {
		handler, preflight, _, _ := newNewsletterHandler()
		report := &model.QAReport{CanSend: true, RecipientsCount: 12}
		preflight.On("Evaluate", mock.Anything, mock.MatchedBy(func(r services.PreflightRequest) bool {
			return r.NewsletterID == 5 && r.Provider == "resend"
		})).Return(report, nil)

		body, _ := json.Marshal(preflightRequest{Provider: "resend", AudienceTag: "all"})
		ctx := setupTestContext("POST", "/newsletters/5/preflight", body)
		ctx.SetUserValue("id", "5")
		handler.Preflight(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.QAReport
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.True(t, response.CanSend)
		assert.Equal(t, 12, response.RecipientsCount)
	})

	t.Run("invalid id", func(t *testing.T) {
		handler, _, _, _ := newNewsletterHandler()
		ctx := setupTestContext("POST", "/newsletters/abc/preflight", nil)
		ctx.SetUserValue("id", "abc")
		handler.Preflight(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestNewsletterHandler_Send(t *testing.T) {
	t.Run("created job answers 201", func(t *testing.T) {
		handler, _, jobs, _ := newNewsletterHandler()
		jobs.On("Submit", mock.Anything, mock.MatchedBy(func(r model.SubmitRequest) bool {
			return r.NewsletterID == 5 && r.IdempotencyKey == "send-1"
		})).Return(&services.SubmitResult{
			Job:     &model.SendJob{ID: 9, Status: model.SendJobStatusQueued},
			Report:  &model.QAReport{CanSend: true},
			Created: true,
		}, nil)

		body, _ := json.Marshal(sendRequest{Provider: "resend", AudienceTag: "all", IdempotencyKey: "send-1"})
		ctx := setupTestContext("POST", "/newsletters/5/send", body)
		ctx.SetUserValue("id", "5")
		handler.Send(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
	})

	t.Run("replayed job answers 200", func(t *testing.T) {
		handler, _, jobs, _ := newNewsletterHandler()
		jobs.On("Submit", mock.Anything, mock.Anything).Return(&services.SubmitResult{
			Job:     &model.SendJob{ID: 9, Status: model.SendJobStatusProcessing},
			Report:  &model.QAReport{CanSend: true},
			Created: false,
		}, nil)

		body, _ := json.Marshal(sendRequest{Provider: "resend", AudienceTag: "all", IdempotencyKey: "send-1"})
		ctx := setupTestContext("POST", "/newsletters/5/send", body)
		ctx.SetUserValue("id", "5")
		handler.Send(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("blocked preflight answers 422 with the report", func(t *testing.T) {
		handler, _, jobs, _ := newNewsletterHandler()
		report := &model.QAReport{}
		report.AddBlocker(model.BlockerNoRecipients, "audience resolved to zero recipients")
		jobs.On("Submit", mock.Anything, mock.Anything).
			Return(&services.SubmitResult{Report: report}, services.ErrPreflightBlocked)

		body, _ := json.Marshal(sendRequest{Provider: "resend", AudienceTag: "all", IdempotencyKey: "send-1"})
		ctx := setupTestContext("POST", "/newsletters/5/send", body)
		ctx.SetUserValue("id", "5")
		handler.Send(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())

		var response services.SubmitResult
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		require.Len(t, response.Report.Blockers, 1)
		assert.Equal(t, model.BlockerNoRecipients, response.Report.Blockers[0].Code)
	})
}

func TestNewsletterHandler_RetryFailed(t *testing.T) {
	t.Run("nothing to retry answers 409", func(t *testing.T) {
		handler, _, jobs, _ := newNewsletterHandler()
		jobs.On("RetryFailed", mock.Anything, int64(5)).Return(nil, services.ErrNothingToRetry)

		ctx := setupTestContext("POST", "/newsletters/5/retry-failed", nil)
		ctx.SetUserValue("id", "5")
		handler.RetryFailed(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("retry answers 201", func(t *testing.T) {
		handler, _, jobs, _ := newNewsletterHandler()
		jobs.On("RetryFailed", mock.Anything, int64(5)).Return(&services.SubmitResult{
			Job:     &model.SendJob{ID: 11, Status: model.SendJobStatusQueued},
			Report:  &model.QAReport{CanSend: true},
			Created: true,
		}, nil)

		ctx := setupTestContext("POST", "/newsletters/5/retry-failed", nil)
		ctx.SetUserValue("id", "5")
		handler.RetryFailed(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
	})
}

func TestNewsletterHandler_Timeline(t *testing.T) {
	handler, _, _, deliveries := newNewsletterHandler()
	deliveries.On("Timeline", mock.Anything, int64(5), 10, 0).Return([]*model.DeliveryWithEvents{
		{ID: 1, Email: "a@example.com", Status: model.DeliveryStatusSent},
	}, nil)

	ctx := setupTestContext("GET", "/newsletters/5/timeline?limit=10", nil)
	ctx.SetUserValue("id", "5")
	handler.Timeline(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response timelineResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	require.Len(t, response.Items, 1)
	assert.Equal(t, "a@example.com", response.Items[0].Email)
}
