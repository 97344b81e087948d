package handler

import (
	"net/http"
	"strings"

	"ctf_zone/internal/api/middleware"
	"ctf_zone/internal/app/service"
	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	adminService       *service.AdminService
	maintenanceService *service.MaintenanceService
}

func NewAdminHandler(as *service.AdminService, ms *service.MaintenanceService) *AdminHandler {
	return &AdminHandler{adminService: as, maintenanceService: ms}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.AdminOnly)
	r.Get("/users", h.listUsers)
	r.Post("/users/{id}/ban", h.toggleBan)
	r.Post("/users/{id}/admin", h.togglePromote)
	r.Post("/users/{id}/reset-password", h.resetPassword)
	r.Get("/submissions", h.listSubmissions)
	r.Post("/maintenance", h.toggleMaintenance)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.Users(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) toggleBan(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	msg, err := h.adminService.ToggleBan(r.Context(), middleware.ActorFromContext(r.Context()), id)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, msg)
}

func (h *AdminHandler) togglePromote(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	msg, err := h.adminService.TogglePromote(r.Context(), middleware.ActorFromContext(r.Context()), id)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, msg)
}

func (h *AdminHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	password, err := h.adminService.ResetPassword(r.Context(), middleware.ActorFromContext(r.Context()), id)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"password": password})
}

// listSubmissions accepts username, problem_id, contest_id and correct=AC|WA.
func (h *AdminHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.SubmissionFilter{
		Username:  strings.TrimSpace(q.Get("username")),
		ProblemID: strings.TrimSpace(q.Get("problem_id")),
		ContestID: strings.TrimSpace(q.Get("contest_id")),
	}
	switch strings.ToUpper(q.Get("correct")) {
	case "":
	case "AC":
		v := true
		filter.Correct = &v
	case "WA":
		v := false
		filter.Correct = &v
	default:
		common.RespondWithError(w, http.StatusBadRequest, "correct must be AC or WA")
		return
	}

	subs, err := h.adminService.Submissions(r.Context(), filter)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *AdminHandler) toggleMaintenance(w http.ResponseWriter, r *http.Request) {
	common.RespondWithMessage(w, http.StatusOK, h.maintenanceService.Toggle())
}
