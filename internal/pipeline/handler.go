package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/decisions"
	"github.com/JaimeStill/relief/pkg/auth"
	"github.com/JaimeStill/relief/pkg/handlers"
	"github.com/JaimeStill/relief/pkg/routes"
)

// Handler provides HTTP endpoints that drive the pipeline.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "pipeline"),
	}
}

// Routes returns the pipeline routes. They extend the application and
// decision resources, so the group has no prefix of its own.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/applications/{id}/process", Handler: h.Process},
			{Method: "POST", Pattern: "/applications/{id}/decide", Handler: auth.RequireReviewer(h.logger, h.Decide)},
			{Method: "POST", Pattern: "/decisions/batch", Handler: auth.RequireReviewer(h.logger, h.DecideBatch)},
		},
	}
}

// Process starts processing of the caller's application and answers 202.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner := auth.Owner(r.Context())
	if owner == "" {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, applications.ErrUnauthorized)
		return
	}

	var cmd applications.ProcessCommand
	if r.ContentLength != 0 {
		c, err := handlers.DecodeJSON[applications.ProcessCommand](r)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		cmd = c
	}

	app, err := h.sys.Process(r.Context(), id, owner, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusAccepted, app)
}

// Decide runs the decision stage synchronously. Reviewers only.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var cmd DecideCommand
	if r.ContentLength != 0 {
		c, err := handlers.DecodeJSON[DecideCommand](r)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		cmd = c
	}

	d, err := h.sys.Decide(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, d)
}

// DecideBatch decides several applications independently. Reviewers only.
func (h *Handler) DecideBatch(w http.ResponseWriter, r *http.Request) {
	cmd, err := handlers.DecodeJSON[BatchCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	switch n := len(cmd.ApplicationIDs); {
	case n == 0:
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			fmt.Errorf("%w: application_ids is required", decisions.ErrValidation))
		return
	case n > MaxBatch:
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			fmt.Errorf("%w: at most %d application_ids per batch", decisions.ErrValidation, MaxBatch))
		return
	}

	handlers.RespondJSON(w, http.StatusOK, h.sys.DecideBatch(r.Context(), cmd))
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, applications.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}
