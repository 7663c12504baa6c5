package override

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-authz/sentra/internal/platform/httpx"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Handler exposes override grant/revoke/list endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountUserRoutes registers override routes under /users/{id}/permissions.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.listActive)
	r.Post("/", h.grant)
	r.Post("/batch", h.grantBatch)
}

// MountOverrideRoutes registers routes addressed by override id.
func (h *Handler) MountOverrideRoutes(r chi.Router) {
	r.Delete("/{id}", h.revoke)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "userID")
	if !ok {
		return
	}
	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	created, err := h.service.Grant(r.Context(), toInput(userID, actorID, req))
	if err != nil {
		h.respondError(w, "grant override", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) grantBatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "userID")
	if !ok {
		return
	}
	var req grantBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	ins := make([]GrantInput, len(req.Grants))
	for i, g := range req.Grants {
		ins[i] = toInput(userID, actorID, g)
	}
	created, err := h.service.GrantBatch(r.Context(), ins)
	if err != nil {
		h.respondError(w, "grant override batch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "userID")
	if !ok {
		return
	}
	overrides, err := h.service.ListActive(r.Context(), userID)
	if err != nil {
		h.respondError(w, "list active overrides", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overrides)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Revoke(r.Context(), actorID, id); err != nil {
		h.respondError(w, "revoke override", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", "invalid request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", err.Error())
		return false
	}
	return true
}

func toInput(userID, actorID int64, req grantRequest) GrantInput {
	return GrantInput{
		UserID:       userID,
		PermissionID: req.PermissionID,
		GrantedBy:    actorID,
		Reason:       req.Reason,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		ExpiresAt:    req.ExpiresAt,
	}
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
