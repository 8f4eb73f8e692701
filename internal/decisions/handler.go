package decisions

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/pkg/auth"
	"github.com/JaimeStill/relief/pkg/handlers"
	"github.com/JaimeStill/relief/pkg/routes"
)

// Handler provides HTTP endpoints for decision history and overrides.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "decisions"),
	}
}

// Routes returns the route group definition for decision endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/decisions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{applicationId}", Handler: h.History},
			{Method: "GET", Pattern: "/{applicationId}/latest", Handler: h.Latest},
			{Method: "POST", Pattern: "/{applicationId}/override", Handler: auth.RequireReviewer(h.logger, h.Override)},
		},
	}
}

// History lists all decisions recorded for an application. Applicants see
// only their own applications; reviewers see any.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	owner, err := auth.ReadScope(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	history, err := h.sys.History(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, history)
}

// Latest returns the current decision for an application.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	owner, err := auth.ReadScope(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	d, err := h.sys.Latest(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, d)
}

// Override records a reviewer decision. The reviewer is recorded as the
// actor regardless of the request body.
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	cmd, err := handlers.DecodeJSON[OverrideCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	cmd.Actor = auth.Owner(r.Context())

	d, err := h.sys.Override(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, d)
}

func (h *Handler) applicationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("applicationId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}
