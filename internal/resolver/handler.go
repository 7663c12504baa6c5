package resolver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-authz/sentra/internal/platform/httpx"
)

type checkRequest struct {
	UserID               int64   `json:"user_id" validate:"required,gt=0"`
	Code                 string  `json:"code" validate:"required"`
	ResourceType         *string `json:"resource_type,omitempty"`
	ResourceID           *string `json:"resource_id,omitempty"`
	ResourceDepartmentID *int64  `json:"resource_department_id,omitempty"`
}

// Handler exposes the decision surface.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver, validate: validator.New()}
}

// MountCheckRoutes registers the check endpoint.
func (h *Handler) MountCheckRoutes(r chi.Router) {
	r.Post("/check", h.check)
}

// MountUserRoutes registers the effective-permission listing.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.listEffective)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if (req.ResourceType == nil) != (req.ResourceID == nil) {
		httpx.Fail(w, http.StatusBadRequest, "validation", "resource_type and resource_id must both be set or both be absent")
		return
	}

	decision, err := h.resolver.Check(r.Context(), CheckRequest{
		UserID:               req.UserID,
		Code:                 req.Code,
		ResourceType:         req.ResourceType,
		ResourceID:           req.ResourceID,
		ResourceDepartmentID: req.ResourceDepartmentID,
	})
	if err != nil {
		h.logger.Error("check permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) listEffective(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", "invalid userID")
		return
	}
	perms, err := h.resolver.ListEffectivePermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list effective permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}
