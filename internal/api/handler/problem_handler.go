package handler

import (
	"net/http"

	"ctf_zone/internal/api/middleware"
	"ctf_zone/internal/app/service"
	"ctf_zone/internal/common"

	"github.com/go-chi/chi/v5"
)

type ProblemHandler struct {
	problemService *service.ProblemService
	scoringService *service.ScoringService
}

func NewProblemHandler(ps *service.ProblemService, ss *service.ScoringService) *ProblemHandler {
	return &ProblemHandler{problemService: ps, scoringService: ss}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/", h.listProblems)
	r.Get("/{id}", h.getProblem)
	r.Get("/{id}/editorial", h.getEditorial)
	r.Post("/{id}/submit", h.submit)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminOnly)
		admin.Get("/drafts", h.listDrafts)
		admin.Post("/", h.createProblem)
		admin.Put("/{id}", h.updateProblem)
		admin.Put("/{id}/editorial", h.updateEditorial)
		admin.Post("/{id}/publish", h.publishProblem)
		admin.Delete("/{id}", h.deleteProblem)
	})
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.problemService.List(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	p, err := h.problemService.Get(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProblemHandler) getEditorial(w http.ResponseWriter, r *http.Request) {
	text, err := h.problemService.Editorial(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"editorial": text})
}

func (h *ProblemHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.scoringService.SubmitProblem(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Flag)
	respondSubmit(w, r, res, err)
}

func (h *ProblemHandler) listDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.problemService.Drafts(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, drafts)
}

func (h *ProblemHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	var req service.ProblemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.problemService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, p)
}

func (h *ProblemHandler) updateProblem(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProblemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.problemService.Update(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Problem updated")
}

func (h *ProblemHandler) updateEditorial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Editorial string `json:"editorial"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.problemService.UpdateEditorial(r.Context(), chi.URLParam(r, "id"), req.Editorial); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Editorial updated")
}

func (h *ProblemHandler) publishProblem(w http.ResponseWriter, r *http.Request) {
	if err := h.problemService.Publish(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Problem published")
}

func (h *ProblemHandler) deleteProblem(w http.ResponseWriter, r *http.Request) {
	if err := h.problemService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Problem deleted")
}
