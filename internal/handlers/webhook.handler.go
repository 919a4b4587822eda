package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/inkwire/dispatch/internal/model"
	xhttp "github.com/inkwire/dispatch/pkg/http"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/inkwire/dispatch/pkg/prom"
)

type EventService interface {
	Ingest(ctx context.Context, raw model.RawEvent) error
}

// WebhookHandler normalizes provider callbacks into raw events. It
// answers 200 even for payloads it cannot use: providers hammer
// non-2xx endpoints with retries and sometimes disable them.
type WebhookHandler struct {
	svc EventService
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/{provider}", h.Receive)
}

func NewWebhookHandler(svc EventService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func (h *WebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	provider, _ := ctx.UserValue("provider").(string)
	body := ctx.PostBody()

	var raw model.RawEvent
	var ok bool
	switch provider {
	case "resend":
		raw, ok = parseResendEvent(ctx, body)
	case "postmark":
		raw, ok = parsePostmarkEvent(body)
	default:
		writeError(ctx, 404, "unknown webhook provider")
		return
	}

	if !ok {
		logger.Warn("unusable webhook payload", "provider", provider, "size", len(body))
		writeJSON(ctx, 200, map[string]bool{"accepted": false})
		return
	}

	if err := h.svc.Ingest(ctx, raw); err != nil {
		logger.Error("webhook ingest failed", "provider", provider, "event_id", raw.ProviderEventID, "error", err)
		writeError(ctx, 500, "ingest failed")
		return
	}

	prom.AddEventIngested(string(raw.Type))
	writeJSON(ctx, 200, map[string]bool{"accepted": true})
}

type resendWebhook struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      struct {
		EmailID string `json:"email_id"`
	} `json:"data"`
}

var resendEventTypes = map[string]model.EventType{
	"email.opened":     model.EventTypeOpen,
	"email.clicked":    model.EventTypeClick,
	"email.bounced":    model.EventTypeBounce,
	"email.complained": model.EventTypeComplaint,
}

func parseResendEvent(ctx *xhttp.RequestCtx, body []byte) (model.RawEvent, bool) {
	var payload resendWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.RawEvent{}, false
	}

	eventType, known := resendEventTypes[payload.Type]
	if !known {
		return model.RawEvent{}, false
	}

	// Deliveries are signed through svix; the svix id is the stable
	// per-event identifier across redeliveries.
	eventID := string(ctx.Request.Header.Peek("svix-id"))
	if eventID == "" {
		eventID = payload.Type + ":" + payload.Data.EmailID
	}

	return model.RawEvent{
		Provider:          "resend",
		ProviderEventID:   eventID,
		ProviderMessageID: payload.Data.EmailID,
		Type:              eventType,
		OccurredAt:        payload.CreatedAt,
		Payload:           body,
	}, payload.Data.EmailID != ""
}

type postmarkWebhook struct {
	RecordType        string    `json:"RecordType"`
	ID                int64     `json:"ID"`
	MessageID         string    `json:"MessageID"`
	BouncedAt         time.Time `json:"BouncedAt"`
	ReceivedAt        time.Time `json:"ReceivedAt"`
	SuppressionReason string    `json:"SuppressionReason"`
}

var postmarkRecordTypes = map[string]model.EventType{
	"Open":          model.EventTypeOpen,
	"Click":         model.EventTypeClick,
	"Bounce":        model.EventTypeBounce,
	"SpamComplaint": model.EventTypeComplaint,
}

func parsePostmarkEvent(body []byte) (model.RawEvent, bool) {
	var payload postmarkWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.RawEvent{}, false
	}

	eventType, known := postmarkRecordTypes[payload.RecordType]
	if !known {
		// SubscriptionChange with a suppression is Postmark's
		// unsubscribe signal.
		if payload.RecordType != "SubscriptionChange" || payload.SuppressionReason == "" {
			return model.RawEvent{}, false
		}
		eventType = model.EventTypeUnsubscribe
	}

	occurredAt := payload.BouncedAt
	if occurredAt.IsZero() {
		occurredAt = payload.ReceivedAt
	}

	eventID := payload.RecordType + ":" + strconv.FormatInt(payload.ID, 10)
	if payload.ID == 0 {
		eventID = payload.RecordType + ":" + payload.MessageID
	}

	return model.RawEvent{
		Provider:          "postmark",
		ProviderEventID:   eventID,
		ProviderMessageID: payload.MessageID,
		Type:              eventType,
		OccurredAt:        occurredAt,
		Payload:           body,
	}, payload.MessageID != ""
}
