package handler

import (
	"net/http"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
)

type submitRequest struct {
	Flag string `json:"flag"`
}

// respondSubmit answers 200 for success and fail and 403 when a contest
// window rejected the attempt.
func respondSubmit(w http.ResponseWriter, r *http.Request, res *model.SubmitResult, err error) {
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	code := http.StatusOK
	if res.Status == model.SubmitGateRejected {
		code = http.StatusForbidden
	}
	common.RespondWithJSON(w, code, res)
}
