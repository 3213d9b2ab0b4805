package handler

import (
	"net/http"
	"strconv"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/middleware"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SyncHandler struct {
	syncService  *service.SyncService
	validate     *validator.Validate
	maxBodyBytes int64
}

func NewSyncHandler(syncService *service.SyncService, maxBodyBytes int64) *SyncHandler {
	return &SyncHandler{
		syncService:  syncService,
		validate:     validator.New(),
		maxBodyBytes: maxBodyBytes,
	}
}

func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.SyncRequest
	if !decodeBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.syncService.Sync(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, res)
}

func (h *SyncHandler) FullSync(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.FullSyncRequest
	if !decodeBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.syncService.FullSync(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, res)
}

func (h *SyncHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.ImportRequest
	if !decodeBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.syncService.Import(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, res)
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	status, err := h.syncService.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, status)
}

func (h *SyncHandler) Events(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			response.BadRequest(w, "invalid limit parameter")
			return
		}
		limit = n
	}

	events, err := h.syncService.Events(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, events)
}
