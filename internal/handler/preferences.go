package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/board"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取偏好设置成功", h.board.Preferences(r.Context(), clientIDFrom(r)))
}

func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentUser *string `json:"currentUser"`
		ViewMode    *string `json:"viewMode" validate:"omitempty,oneof=mySchedule teamWeekly monthly list"`
		TestFilter  *string `json:"testFilter" validate:"omitempty,min=1"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	patch := board.PreferencesPatch{
		CurrentUser: req.CurrentUser,
		TestFilter:  req.TestFilter,
	}
	if req.ViewMode != nil {
		mode := domain.ViewMode(*req.ViewMode)
		patch.ViewMode = &mode
	}

	h.successResponse(w, r, "更新偏好设置成功", h.board.UpdatePreferences(r.Context(), clientIDFrom(r), patch))
}
