package handler

import (
	"net/http"
	"strconv"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/middleware"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/pkg/response"

	"github.com/gorilla/mux"
)

type PaperHandler struct {
	paperService *service.PaperService
	maxBodyBytes int64
}

func NewPaperHandler(paperService *service.PaperService, maxBodyBytes int64) *PaperHandler {
	return &PaperHandler{
		paperService: paperService,
		maxBodyBytes: maxBodyBytes,
	}
}

func paperID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *PaperHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var change domain.PaperChange
	if !decodeBody(w, r, h.maxBodyBytes, &change) {
		return
	}

	paper, created, err := h.paperService.Create(r.Context(), userID, middleware.GetClientID(r), &change)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if created {
		response.Created(w, paper)
		return
	}
	response.Success(w, paper)
}

func (h *PaperHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	papers, err := h.paperService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, papers)
}

func (h *PaperHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := paperID(r)
	if !ok {
		response.BadRequest(w, "invalid paper id")
		return
	}

	paper, err := h.paperService.GetByID(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, paper)
}

func (h *PaperHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := paperID(r)
	if !ok {
		response.BadRequest(w, "invalid paper id")
		return
	}

	var change domain.PaperChange
	if !decodeBody(w, r, h.maxBodyBytes, &change) {
		return
	}

	paper, err := h.paperService.Update(r.Context(), userID, middleware.GetClientID(r), id, &change)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, paper)
}

func (h *PaperHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := paperID(r)
	if !ok {
		response.BadRequest(w, "invalid paper id")
		return
	}

	if err := h.paperService.Delete(r.Context(), userID, middleware.GetClientID(r), id); err != nil {
		writeServiceError(w, err)
		return
	}

	response.Message(w, "Paper deleted successfully")
}

func (h *PaperHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := paperID(r)
	if !ok {
		response.BadRequest(w, "invalid paper id")
		return
	}

	paper, err := h.paperService.Restore(r.Context(), userID, middleware.GetClientID(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, paper)
}
