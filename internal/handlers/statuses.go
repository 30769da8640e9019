package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/platform/auth"
	"github.com/snackhouse/api/internal/platform/httpx"
	"github.com/snackhouse/api/internal/services"
)

type upsertStatusRequest struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

// StatusHandlers exposes the status reference catalog. Reads are open to any
// authenticated caller; mutations require the admin role.
type StatusHandlers struct {
	authn    *auth.Authenticator
	statuses services.StatusService
}

// NewStatusHandlers constructs a new StatusHandlers instance.
func NewStatusHandlers(authn *auth.Authenticator, statuses services.StatusService) *StatusHandlers {
	return &StatusHandlers{
		authn:    authn,
		statuses: statuses,
	}
}

// Routes registers the /statuses endpoints.
func (h *StatusHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.Middleware())
	}

	r.Get("/", h.listStatuses)
	r.Get("/{statusID}", h.getStatus)
	r.Get("/code/{code}", h.getStatusByCode)

	r.Group(func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(auth.RequireRoles(auth.RoleAdmin))
		}
		admin.Post("/", h.createStatus)
		admin.Put("/{statusID}", h.updateStatus)
		admin.Delete("/{statusID}", h.deleteStatus)
	})
}

func (h *StatusHandlers) listStatuses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statuses, err := h.statuses.List(ctx)
	if err != nil {
		writeStatusError(ctx, w, err)
		return
	}

	payloads := make([]statusPayload, 0, len(statuses))
	for _, status := range statuses {
		payloads = append(payloads, buildStatusPayload(status))
	}
	writeJSONResponse(w, http.StatusOK, statusListResponse{Statuses: payloads})
}

func (h *StatusHandlers) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statusID, err := parseStatusIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	status, err := h.statuses.GetByID(ctx, statusID)
	if err != nil {
		writeStatusError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, statusResponse{Status: buildStatusPayload(status)})
}

func (h *StatusHandlers) getStatusByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "code")))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status code is required", http.StatusBadRequest))
		return
	}

	status, err := h.statuses.GetByCode(ctx, domain.StatusCode(code))
	if err != nil {
		writeStatusError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, statusResponse{Status: buildStatusPayload(status)})
}

func (h *StatusHandlers) createStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertStatusRequest
	if !decodeBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	status, err := h.statuses.Create(ctx, services.UpsertStatusCommand{
		Code:        domain.StatusCode(strings.ToLower(strings.TrimSpace(req.Status))),
		Description: req.Description,
	})
	if err != nil {
		writeStatusError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, statusResponse{Status: buildStatusPayload(status)})
}

func (h *StatusHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statusID, err := parseStatusIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var req upsertStatusRequest
	if !decodeBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	status, err := h.statuses.Update(ctx, services.UpsertStatusCommand{
		ID:          statusID,
		Code:        domain.StatusCode(strings.ToLower(strings.TrimSpace(req.Status))),
		Description: req.Description,
	})
	if err != nil {
		writeStatusError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, statusResponse{Status: buildStatusPayload(status)})
}

func (h *StatusHandlers) deleteStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statusID, err := parseStatusIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	if err := h.statuses.Delete(ctx, statusID); err != nil {
		writeStatusError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseStatusIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "statusID"))
	if raw == "" {
		return 0, errors.New("status id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("status id must be a positive integer")
	}
	return id, nil
}

func writeStatusError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrStatusNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("status_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrStatusInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrStatusConflict):
		httpx.WriteError(ctx, w, httpx.NewError("status_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

type statusListResponse struct {
	Statuses []statusPayload `json:"statuses"`
}

type statusResponse struct {
	Status statusPayload `json:"status"`
}

type statusPayload struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

func buildStatusPayload(status domain.OrderStatus) statusPayload {
	return statusPayload{
		ID:          status.ID,
		Status:      string(status.Code),
		Description: status.Description,
	}
}
