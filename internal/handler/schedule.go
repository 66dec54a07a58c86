package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/board"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/ingest"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/views"
)

type uploadResponse struct {
	Count         int               `json:"count"`
	Errors        []ingest.RowError `json:"errors"`
	OmittedErrors int               `json:"omittedErrors"`
	Summary       string            `json:"summary"`
}

func newUploadResponse(result *ingest.Result) uploadResponse {
	resp := uploadResponse{Errors: make([]ingest.RowError, 0)}
	if result == nil {
		return resp
	}

	resp.Count = len(result.Entries)
	if result.Errors != nil {
		resp.Errors = result.Errors
	}
	resp.OmittedErrors = result.OmittedErrors
	resp.Summary = result.Summary()
	return resp
}

func (h *Handler) UploadSchedule(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Upload.MaxBytes)
	if err := r.ParseMultipartForm(h.config.Upload.MaxBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.errorResponse(w, r, fmt.Sprintf("文件过大，最大允许 %d 字节", h.config.Upload.MaxBytes))
		default:
			h.errorResponse(w, r, "无法读取上传的表单")
		}
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorResponse(w, r, "请选择要上传的文件")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	result, err := h.board.Upload(r.Context(), clientIDFrom(r), header.Filename, data)
	if err != nil {
		var missingErr *ingest.MissingColumnsError
		var storeErr *domain.StoreError
		switch {
		case errors.As(err, &missingErr):
			h.errorResponse(w, r, missingErr.Error())
		case errors.Is(err, ingest.ErrNoValidRows):
			// 没有有效的行时把行错误一起返回，方便用户定位问题
			h.writeJSON(w, r, http.StatusOK, Response{
				Success: false,
				Message: err.Error(),
				Data:    newUploadResponse(result),
			})
		case errors.Is(err, ingest.ErrEmptySheet), errors.Is(err, ingest.ErrUnreadableFile):
			h.errorResponse(w, r, err.Error())
		case errors.Is(err, domain.ErrTooManyRows):
			h.errorResponse(w, r, fmt.Sprintf("班表最多只能包含 %d 行", h.config.Database.MaxRows))
		case errors.As(err, &storeErr):
			slog.Error("无法保存班表", "error", err)
			h.errorResponse(w, r, "无法保存班表，请稍后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.publishScheduleUpdated(result)

	msg := fmt.Sprintf("成功导入 %d 条记录", len(result.Entries))
	if result.ErrorCount() > 0 {
		msg = fmt.Sprintf("成功导入 %d 条记录，%d 行被跳过", len(result.Entries), result.ErrorCount())
	}
	h.successResponse(w, r, msg, newUploadResponse(result))
}

func (h *Handler) ClearSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Clear(r.Context(), clientIDFrom(r)); err != nil {
		var storeErr *domain.StoreError
		switch {
		case errors.As(err, &storeErr):
			slog.Error("无法清空班表", "error", err)
			h.errorResponse(w, r, "无法清空班表，请稍后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.publishScheduleCleared()

	h.successResponse(w, r, "班表已清空", nil)
}

func (h *Handler) GetScheduleEntries(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取班表成功", h.board.Entries())
}

func (h *Handler) GetScheduleMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.board.LastUpdated(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if meta == nil {
		h.successResponse(w, r, "班表尚未上传", nil)
		return
	}

	h.successResponse(w, r, "获取班表信息成功", meta)
}

func (h *Handler) GetScheduleStatus(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取班表状态成功", h.board.Status())
}

type viewsResponse struct {
	View        domain.ViewMode    `json:"view"`
	Preferences domain.Preferences `json:"preferences"`
	Views       *views.Views       `json:"views"`
}

func (h *Handler) GetScheduleViews(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := struct {
		View  string `validate:"omitempty,oneof=mySchedule teamWeekly monthly list"`
		Week  string `validate:"omitempty,datetime=2006-01-02"`
		Month string `validate:"omitempty,datetime=2006-01"`
	}{
		View:  query.Get("view"),
		Week:  query.Get("week"),
		Month: query.Get("month"),
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	q := board.ViewQuery{
		Week:  req.Week,
		Month: req.Month,
	}
	if query.Has("person") {
		person := query.Get("person")
		q.Person = &person
	}
	if query.Has("filter") {
		filter := query.Get("filter")
		q.Filter = &filter
	}

	v, prefs, err := h.board.View(r.Context(), clientIDFrom(r), q)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	mode := prefs.ViewMode
	if req.View != "" {
		mode = domain.ViewMode(req.View)
	}

	h.successResponse(w, r, "获取视图成功", viewsResponse{
		View:        mode,
		Preferences: prefs,
		Views:       v,
	})
}

type snapshotEvent struct {
	Status  board.Status           `json:"status"`
	Entries []domain.ScheduleEntry `json:"entries"`
}

// StreamSchedule 以 server-sent events 的形式推送每一次新的班表快照
func (h *Handler) StreamSchedule(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// 长连接不受服务器写超时的限制
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.internalServerError(w, r, err)
		return
	}

	// 只保留最新的快照，慢的客户端会跳过中间的版本
	updates := make(chan struct{}, 1)
	cancel := h.board.Watch(func([]domain.ScheduleEntry) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() bool {
		data, err := json.Marshal(snapshotEvent{
			Status:  h.board.Status(),
			Entries: h.board.Entries(),
		})
		if err != nil {
			h.logInternalServerError(r, err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
			if !send() {
				return
			}
		}
	}
}
