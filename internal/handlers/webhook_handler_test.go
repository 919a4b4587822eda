package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) Ingest(ctx context.Context, raw model.RawEvent) error {
	args := m.Called(ctx, raw)
	return args.Error(0)
}

func TestWebhookHandler_Resend(t *testing.T) {
	t.Run("bounce event is ingested", func(t *testing.T) {
		svc := new(MockEventService)
		handler := NewWebhookHandler(svc)

		var captured model.RawEvent
		svc.On("Ingest", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			captured = args.Get(1).(model.RawEvent)
		}).Return(nil)

		body := []byte(`{"type":"email.bounced","created_at":"2026-04-01T10:00:00Z","data":{"email_id":"re_abc123"}}`)
		ctx := setupTestContext("POST", "/webhooks/resend", body)
		ctx.Request.Header.Set("svix-id", "msg_xyz")
		ctx.SetUserValue("provider", "resend")
		handler.Receive(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "resend", captured.Provider)
		assert.Equal(t, "msg_xyz", captured.ProviderEventID)
		assert.Equal(t, "re_abc123", captured.ProviderMessageID)
		assert.Equal(t, model.EventTypeBounce, captured.Type)
		assert.Equal(t, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), captured.OccurredAt)
	})

	t.Run("missing svix id falls back to a derived id", func(t *testing.T) {
		svc := new(MockEventService)
		handler := NewWebhookHandler(svc)

		var captured model.RawEvent
		svc.On("Ingest", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			captured = args.Get(1).(model.RawEvent)
		}).Return(nil)

		body := []byte(`{"type":"email.opened","data":{"email_id":"re_abc123"}}`)
		ctx := setupTestContext("POST", "/webhooks/resend", body)
		ctx.SetUserValue("provider", "resend")
		handler.Receive(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "email.opened:re_abc123", captured.ProviderEventID)
	})

	t.Run("unknown event type answers 200 without ingesting", func(t *testing.T) {
		svc := new(MockEventService)
		handler := NewWebhookHandler(svc)

		body := []byte(`{"type":"email.scheduled","data":{"email_id":"re_abc123"}}`)
		ctx := setupTestContext("POST", "/webhooks/resend", body)
		ctx.SetUserValue("provider", "resend")
		handler.Receive(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response map[string]bool
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.False(t, response["accepted"])
		svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	})
}

func TestWebhookHandler_Postmark(t *testing.T) {
	t.Run("spam complaint is ingested", func(t *testing.T) {
		svc := new(MockEventService)
		handler := NewWebhookHandler(svc)

		var captured model.RawEvent
		svc.On("Ingest", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			captured = args.Get(1).(model.RawEvent)
		}).Return(nil)

		body := []byte(`{"RecordType":"SpamComplaint","ID":42,"MessageID":"pm-msg-1","BouncedAt":"2026-04-01T10:00:00Z"}`)
		ctx := setupTestContext("POST", "/webhooks/postmark", body)
		ctx.SetUserValue("provider", "postmark")
		handler.Receive(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "postmark", captured.Provider)
		assert.Equal(t, "SpamComplaint:42", captured.ProviderEventID)
		assert.Equal(t, "pm-msg-1", captured.ProviderMessageID)
		assert.Equal(t, model.EventTypeComplaint, captured.Type)
	})

	t.Run("subscription change with suppression maps to unsubscribe", func(t *testing.T) {
		svc := new(MockEventService)
		handler := NewWebhookHandler(svc)

		var captured model.RawEvent
		svc.On("Ingest", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			captured = args.Get(1).(model.RawEvent)
		}).Return(nil)

		body := []byte(`{"RecordType":"SubscriptionChange","MessageID":"pm-msg-2","SuppressionReason":"ManualSuppression","ReceivedAt":"2026-04-01T11:00:00Z"}`)
		ctx := setupTestContext("POST", "/webhooks/postmark", body)
		ctx.SetUserValue("provider", "postmark")
		handler.Receive(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, model.EventTypeUnsubscribe, captured.Type)
		assert.Equal(t, time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC), captured.OccurredAt)
	})

	t.Run("missing message id answers 200 without ingesting", func(t *testing.T) {
		svc := new(MockEventService)
		handler := NewWebhookHandler(svc)

		body := []byte(`{"RecordType":"Bounce","ID":7}`)
		ctx := setupTestContext("POST", "/webhooks/postmark", body)
		ctx.SetUserValue("provider", "postmark")
		handler.Receive(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	})
}

func TestWebhookHandler_UnknownProvider(t *testing.T) {
	handler := NewWebhookHandler(new(MockEventService))

	ctx := setupTestContext("POST", "/webhooks/sendgrid", []byte(`{}`))
	ctx.SetUserValue("provider", "sendgrid")
	handler.Receive(ctx)

	assert.Equal(t, 404, ctx.Response.StatusCode())
}
