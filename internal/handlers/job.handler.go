package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/repository"
	xhttp "github.com/inkwire/dispatch/pkg/http"
)

type JobService interface {
	GetJob(ctx context.Context, jobID int64) (*model.SendJob, error)
	Cancel(ctx context.Context, jobID int64) (*model.SendJob, error)
}

type JobHandler struct {
	svc JobService
}

func RegisterJobRoutes(e *router.Group, h *JobHandler) {
	e.GET("/jobs/{id}", h.GetJob)
	e.POST("/jobs/{id}/cancel", h.CancelJob)
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

func (h *JobHandler) GetJob(ctx *xhttp.RequestCtx) {
	jobID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid job id")
		return
	}

	job, err := h.svc.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, job)
}

func (h *JobHandler) CancelJob(ctx *xhttp.RequestCtx) {
	jobID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid job id")
		return
	}

	job, err := h.svc.Cancel(ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			writeError(ctx, 404, err.Error())
		case errors.Is(err, repository.ErrJobNotCancelable):
			// The job body shows the state the cancel lost against.
			writeJSON(ctx, 409, map[string]any{
				"error": err.Error(),
				"job":   job,
			})
		default:
			writeError(ctx, 400, err.Error())
		}
		return
	}
	writeJSON(ctx, 200, job)
}
