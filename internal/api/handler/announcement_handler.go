package handler

import (
	"net/http"

	"ctf_zone/internal/api/middleware"
	"ctf_zone/internal/app/service"
	"ctf_zone/internal/common"

	"github.com/go-chi/chi/v5"
)

type AnnouncementHandler struct {
	announcementService *service.AnnouncementService
}

func NewAnnouncementHandler(as *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: as}
}

func (h *AnnouncementHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminOnly)
		admin.Post("/", h.create)
		admin.Put("/{id}", h.update)
		admin.Delete("/{id}", h.delete)
	})
}

func (h *AnnouncementHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.announcementService.List(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, items)
}

func (h *AnnouncementHandler) create(w http.ResponseWriter, r *http.Request) {
	var req service.AnnouncementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.announcementService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, a)
}

func (h *AnnouncementHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req service.AnnouncementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.announcementService.Update(r.Context(), id, req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Announcement updated")
}

func (h *AnnouncementHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.announcementService.Delete(r.Context(), id); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Announcement deleted")
}
