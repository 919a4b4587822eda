package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/repository"
	xhttp "github.com/inkwire/dispatch/pkg/http"
)

type IdentityService interface {
	GetIdentity(ctx context.Context, id int64) (*model.SendingIdentity, error)
	PauseIdentity(ctx context.Context, id int64, reason string) error
	ResumeIdentity(ctx context.Context, id int64) error
}

// IdentityHandler is the operator surface over sending identities;
// resume in particular is the only way out of paused.
type IdentityHandler struct {
	svc IdentityService
}

func RegisterIdentityRoutes(e *router.Group, h *IdentityHandler) {
	e.GET("/identities/{id}", h.GetIdentity)
	e.POST("/identities/{id}/pause", h.PauseIdentity)
	e.POST("/identities/{id}/resume", h.ResumeIdentity)
}

func NewIdentityHandler(svc IdentityService) *IdentityHandler {
	return &IdentityHandler{svc: svc}
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

func (h *IdentityHandler) GetIdentity(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid identity id")
		return
	}

	identity, err := h.svc.GetIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, identity)
}

func (h *IdentityHandler) PauseIdentity(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid identity id")
		return
	}

	var req pauseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	if err := h.svc.PauseIdentity(ctx, id, req.Reason); err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	identity, err := h.svc.GetIdentity(ctx, id)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, identity)
}

func (h *IdentityHandler) ResumeIdentity(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid identity id")
		return
	}

	if err := h.svc.ResumeIdentity(ctx, id); err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	identity, err := h.svc.GetIdentity(ctx, id)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, identity)
}
