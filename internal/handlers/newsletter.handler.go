package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/repository"
	"github.com/inkwire/dispatch/internal/services"
	xhttp "github.com/inkwire/dispatch/pkg/http"
)

type PreflightService interface {
	Evaluate(ctx context.Context, req services.PreflightRequest) (*model.QAReport, error)
}

type SendJobService interface {
	Submit(ctx context.Context, req model.SubmitRequest) (*services.SubmitResult, error)
	RetryFailed(ctx context.Context, newsletterID int64) (*services.SubmitResult, error)
	ListJobs(ctx context.Context, filter *model.SendJobFilter) ([]*model.SendJob, error)
}

type DeliveryService interface {
	Timeline(ctx context.Context, newsletterID int64, limit, offset int) ([]*model.DeliveryWithEvents, error)
}

type NewsletterHandler struct {
	preflight  PreflightService
	jobs       SendJobService
	deliveries DeliveryService
}

func RegisterNewsletterRoutes(e *router.Group, h *NewsletterHandler) {
	e.POST("/newsletters/{id}/preflight", h.Preflight)
	e.POST("/newsletters/{id}/send", h.Send)
	e.POST("/newsletters/{id}/retry-failed", h.RetryFailed)
	e.GET("/newsletters/{id}/jobs", h.ListJobs)
	e.GET("/newsletters/{id}/timeline", h.Timeline)
}

func NewNewsletterHandler(preflight PreflightService, jobs SendJobService, deliveries DeliveryService) *NewsletterHandler {
	return &NewsletterHandler{
		preflight:  preflight,
		jobs:       jobs,
		deliveries: deliveries,
	}
}

type preflightRequest struct {
	Provider     string     `json:"provider"`
	AudienceTag  string     `json:"audience_tag"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

type sendRequest struct {
	Provider       string     `json:"provider"`
	AudienceTag    string     `json:"audience_tag"`
	IdempotencyKey string     `json:"idempotency_key"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
}

type timelineResponse struct {
	Items []*model.DeliveryWithEvents `json:"items"`
}

type jobListResponse struct {
	Items []*model.SendJob `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *NewsletterHandler) Preflight(ctx *xhttp.RequestCtx) {
	newsletterID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid newsletter id")
		return
	}

	var req preflightRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	report, err := h.preflight.Evaluate(ctx, services.PreflightRequest{
		NewsletterID: newsletterID,
		Provider:     req.Provider,
		AudienceTag:  req.AudienceTag,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNewsletterNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 400, err.Error())
		return
	}

	writeJSON(ctx, 200, report)
}

func (h *NewsletterHandler) Send(ctx *xhttp.RequestCtx) {
	newsletterID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid newsletter id")
		return
	}

	var req sendRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.jobs.Submit(ctx, model.SubmitRequest{
		NewsletterID:   newsletterID,
		Provider:       req.Provider,
		AudienceTag:    req.AudienceTag,
		IdempotencyKey: req.IdempotencyKey,
		ScheduledFor:   req.ScheduledFor,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPreflightBlocked):
			// The report tells the caller exactly what to fix.
			writeJSON(ctx, 422, result)
		case errors.Is(err, repository.ErrNewsletterNotFound):
			writeError(ctx, 404, err.Error())
		default:
			writeError(ctx, 400, err.Error())
		}
		return
	}

	status := 200
	if result.Created {
		status = 201
	}
	writeJSON(ctx, status, result)
}

func (h *NewsletterHandler) RetryFailed(ctx *xhttp.RequestCtx) {
	newsletterID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid newsletter id")
		return
	}

	result, err := h.jobs.RetryFailed(ctx, newsletterID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNothingToRetry):
			writeError(ctx, 409, err.Error())
		case errors.Is(err, repository.ErrJobNotFound):
			writeError(ctx, 404, "newsletter has no completed send to retry")
		case errors.Is(err, services.ErrPreflightBlocked):
			writeJSON(ctx, 422, result)
		default:
			writeError(ctx, 400, err.Error())
		}
		return
	}

	status := 200
	if result.Created {
		status = 201
	}
	writeJSON(ctx, status, result)
}

func (h *NewsletterHandler) ListJobs(ctx *xhttp.RequestCtx) {
	newsletterID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid newsletter id")
		return
	}

	filter := &model.SendJobFilter{NewsletterID: &newsletterID}
	if v := query(ctx, "status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				filter.Statuses = append(filter.Statuses, model.SendJobStatus(part))
			}
		}
	}
	filter.Limit, filter.Offset = pagination(ctx)
	if strings.EqualFold(query(ctx, "order"), "desc") {
		filter.Desc = true
	}

	items, err := h.jobs.ListJobs(ctx, filter)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, jobListResponse{Items: items})
}

func (h *NewsletterHandler) Timeline(ctx *xhttp.RequestCtx) {
	newsletterID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid newsletter id")
		return
	}

	limit, offset := pagination(ctx)
	items, err := h.deliveries.Timeline(ctx, newsletterID, limit, offset)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, timelineResponse{Items: items})
}

/* -------------------------------- Helpers ------------------------------------ */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func pagination(ctx *xhttp.RequestCtx) (limit, offset int) {
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			offset = n
		}
	}
	return limit, offset
}
