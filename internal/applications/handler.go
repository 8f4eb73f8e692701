package applications

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/pkg/auth"
	"github.com/JaimeStill/relief/pkg/formatting"
	"github.com/JaimeStill/relief/pkg/handlers"
	"github.com/JaimeStill/relief/pkg/pagination"
	"github.com/JaimeStill/relief/pkg/routes"
)

// Handler provides HTTP endpoints for application operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination config
// and multipart upload limit.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "applications"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for application endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/applications",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Start},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/active", Handler: h.Active},
			{Method: "DELETE", Pattern: "/active", Handler: h.DiscardActive},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/documents", Handler: h.Documents},
			{Method: "POST", Pattern: "/{id}/documents", Handler: h.SubmitDocuments},
			{Method: "POST", Pattern: "/{id}/reset", Handler: h.Reset},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
			{Method: "POST", Pattern: "/{id}/manual-review", Handler: auth.RequireReviewer(h.logger, h.RequireReview)},
			{Method: "GET", Pattern: "/{id}/status", Handler: h.Status},
			{Method: "GET", Pattern: "/{id}/result", Handler: h.Result},
		},
	}
}

// List returns the caller's applications. Reviewers see every application
// and the owner_id query filter applies as given.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.scope(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())
	if owner != "" {
		filters.OwnerID = &owner
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.scope(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[SearchRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)
	if owner != "" {
		req.Filters.OwnerID = &owner
	}

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Start submits the application form and creates the caller's active application.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	form, err := handlers.DecodeJSON[FormData](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	app, err := h.sys.Start(r.Context(), auth.Owner(r.Context()), form)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, app)
}

// Active returns the caller's active application.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	app, err := h.sys.Active(r.Context(), auth.Owner(r.Context()))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, app)
}

// DiscardActive deletes the caller's active application and its documents.
func (h *Handler) DiscardActive(w http.ResponseWriter, r *http.Request) {
	id, err := h.sys.DiscardActive(r.Context(), auth.Owner(r.Context()))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]any{"discarded_id": id})
}

// Find returns a single application.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner, ok := h.scope(w, r)
	if !ok {
		return
	}

	app, err := h.sys.Find(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, app)
}

// Documents lists the documents attached to an application.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner, ok := h.scope(w, r)
	if !ok {
		return
	}

	docs, err := h.sys.Documents(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, docs)
}

// SubmitDocuments accepts a multipart form whose field names are document
// types (emirates_id, bank_statement).
func (h *Handler) SubmitDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: limit %s", documents.ErrFileTooLarge, formatting.FormatBytes(h.maxUploadSize, 0)))
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cmds, err := documents.ReadUploads(h.logger, r.MultipartForm)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	app, err := h.sys.SubmitDocuments(r.Context(), id, owner, cmds)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, app)
}

// Reset returns a decided or failed application to an editable state.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	app, err := h.sys.Reset(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, app)
}

// Cancel withdraws an active application.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	app, err := h.sys.Cancel(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, app)
}

// RequireReview flags an application for manual review. The authenticated
// caller is recorded as the actor.
func (h *Handler) RequireReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	cmd, err := handlers.DecodeJSON[ReviewCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	cmd.Actor = auth.Owner(r.Context())

	app, err := h.sys.RequireReview(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, app)
}

// Status returns the workflow position and step log.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner, ok := h.scope(w, r)
	if !ok {
		return
	}

	view, err := h.sys.Status(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, view)
}

// Result returns the decision, or 202 with a Retry-After header while the
// application is still being processed.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	owner, ok := h.scope(w, r)
	if !ok {
		return
	}

	view, err := h.sys.Result(r.Context(), id, owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if view.Status == ResultProcessing {
		w.Header().Set("Retry-After", strconv.Itoa(view.RetryAfterSeconds))
		handlers.RespondJSON(w, http.StatusAccepted, view)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, view)
}

// scope resolves the owner filter for reads. Reviewers read every
// application; anonymous callers are rejected.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, err := auth.ReadScope(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return "", false
	}
	return owner, true
}

// caller returns the owner identity required by applicant mutations.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := auth.Owner(r.Context())
	if owner == "" {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrUnauthorized)
		return "", false
	}
	return owner, true
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}
