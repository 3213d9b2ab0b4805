package handler

import (
	"net/http"

	"paperlib-sync-server/internal/middleware"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/pkg/response"
)

type LibraryHandler struct {
	syncService *service.SyncService
}

func NewLibraryHandler(syncService *service.SyncService) *LibraryHandler {
	return &LibraryHandler{syncService: syncService}
}

// Wipe hard-deletes the caller's library. The request must repeat the
// user id in the confirm query parameter.
func (h *LibraryHandler) Wipe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	if r.URL.Query().Get("confirm") != userID {
		response.BadRequest(w, "confirm must match the user id")
		return
	}

	result, err := h.syncService.Wipe(r.Context(), userID, middleware.GetClientID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, result)
}
