package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-authz/sentra/internal/platform/httpx"
	"github.com/sentra-authz/sentra/internal/shared"
)

// Handler exposes the catalog CRUD surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/matrix", h.matrix)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Post("/{id}/disable", h.disable)
	r.Post("/{id}/enable", h.enable)
	r.Delete("/{id}", h.remove)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), actorID, CreateInput{
		Code:        req.Code,
		Name:        req.Name,
		Category:    req.Category,
		Scope:       req.Scope,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := Filter{Limit: 50}
	q := r.URL.Query()
	if v := q.Get("category"); v != "" {
		category, err := ParseCategory(v)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		f.Category = &category
	}
	if v := q.Get("scope"); v != "" {
		scope, err := ParseScope(v)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		f.Scope = &scope
	}
	if v := q.Get("status"); v != "" {
		status, err := ParseStatus(v)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		f.Status = &status
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		f.Offset = v
	}

	perms, total, err := h.service.List(r.Context(), f)
	if err != nil {
		h.respondError(w, "list permissions", err)
		return
	}
	page := f.Offset/f.Limit + 1
	httpx.JSONMeta(w, http.StatusOK, perms, shared.NewPagination(page, f.Limit, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req updatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), actorID, id, UpdateInput{
		Name:        req.Name,
		Category:    req.Category,
		Scope:       req.Scope,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Disable)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Enable)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, id int64) error) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	if err := op(r.Context(), actorID, id); err != nil {
		h.respondError(w, "set permission status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Remove(r.Context(), actorID, id); err != nil {
		h.respondError(w, "remove permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

func (h *Handler) matrix(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Matrix(r.Context())
	if err != nil {
		h.respondError(w, "permission matrix", err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation", "invalid permission id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
