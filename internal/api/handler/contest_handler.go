package handler

import (
	"net/http"

	"ctf_zone/internal/api/middleware"
	"ctf_zone/internal/app/service"
	"ctf_zone/internal/common"

	"github.com/go-chi/chi/v5"
)

type ContestHandler struct {
	contestService *service.ContestService
	scoringService *service.ScoringService
	exportService  *service.ExportService
}

func NewContestHandler(cs *service.ContestService, ss *service.ScoringService, es *service.ExportService) *ContestHandler {
	return &ContestHandler{contestService: cs, scoringService: ss, exportService: es}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/", h.listContests)
	r.Get("/{cid}", h.viewContest)
	r.Get("/{cid}/scoreboard", h.scoreboard)
	r.Get("/{cid}/problems/{pid}", h.getProblem)
	r.Post("/{cid}/problems/{pid}/submit", h.submit)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminOnly)
		admin.Post("/", h.createContest)
		admin.Put("/{cid}", h.updateContest)
		admin.Delete("/{cid}", h.deleteContest)
		admin.Get("/{cid}/drafts", h.listDrafts)
		admin.Post("/{cid}/problems", h.addProblem)
		admin.Put("/{cid}/problems/{pid}", h.updateProblem)
		admin.Post("/{cid}/problems/{pid}/publish", h.publishProblem)
		admin.Post("/{cid}/problems/{pid}/export", h.exportProblem)
	})
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	list, err := h.contestService.List(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, list)
}

func (h *ContestHandler) viewContest(w http.ResponseWriter, r *http.Request) {
	view, err := h.contestService.View(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "cid"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view)
}

func (h *ContestHandler) scoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.contestService.Scoreboard(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "cid"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, board)
}

func (h *ContestHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	p, err := h.contestService.GetProblem(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "cid"), chi.URLParam(r, "pid"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ContestHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.scoringService.SubmitContestProblem(r.Context(), middleware.ActorFromContext(r.Context()),
		chi.URLParam(r, "cid"), chi.URLParam(r, "pid"), req.Flag)
	respondSubmit(w, r, res, err)
}

func (h *ContestHandler) createContest(w http.ResponseWriter, r *http.Request) {
	var req service.ContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.contestService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *ContestHandler) updateContest(w http.ResponseWriter, r *http.Request) {
	var req service.ContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.contestService.Update(r.Context(), chi.URLParam(r, "cid"), req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Contest updated")
}

func (h *ContestHandler) deleteContest(w http.ResponseWriter, r *http.Request) {
	if err := h.contestService.Delete(r.Context(), chi.URLParam(r, "cid")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Contest deleted")
}

func (h *ContestHandler) listDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.contestService.Drafts(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, drafts)
}

func (h *ContestHandler) addProblem(w http.ResponseWriter, r *http.Request) {
	var req service.ProblemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.contestService.AddProblem(r.Context(), chi.URLParam(r, "cid"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, p)
}

func (h *ContestHandler) updateProblem(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProblemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.contestService.UpdateProblem(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "pid"), req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Problem updated")
}

func (h *ContestHandler) publishProblem(w http.ResponseWriter, r *http.Request) {
	if err := h.contestService.PublishProblem(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "pid")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Problem published")
}

func (h *ContestHandler) exportProblem(w http.ResponseWriter, r *http.Request) {
	newID, err := h.exportService.ExportContestProblem(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "pid"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": newID})
}
