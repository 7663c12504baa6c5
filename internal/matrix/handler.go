package matrix

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-authz/sentra/internal/platform/httpx"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Handler exposes role and role-permission matrix endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Patch("/{id}", h.updateRole)
	r.Delete("/{id}", h.deleteRole)
	r.Get("/{id}/permissions", h.getRolePermissions)
	r.Put("/{id}/permissions", h.saveRolePermissions)
	r.Post("/{id}/permissions", h.assignPermissions)
	r.Delete("/{id}/permissions/{permissionID}", h.revokePermission)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	role, err := h.service.CreateRole(r.Context(), actorID, req.Code, req.Name, req.Description)
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	role, err := h.service.UpdateRole(r.Context(), actorID, id, req.Name, req.Description)
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteRole(r.Context(), actorID, id); err != nil {
		h.respondError(w, "delete role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	perms, err := h.service.GetRolePermissions(r.Context(), id)
	if err != nil {
		h.respondError(w, "get role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) saveRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req permissionIDsRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.SaveRolePermissions(r.Context(), id, req.PermissionIDs, actorID); err != nil {
		h.respondError(w, "save role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req permissionIDsRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.AssignPermissions(r.Context(), id, req.PermissionIDs, actorID); err != nil {
		h.respondError(w, "assign role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := idParam(w, r, "permissionID")
	if !ok {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.RevokePermission(r.Context(), id, permissionID, actorID); err != nil {
		h.respondError(w, "revoke role permission", err)
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
