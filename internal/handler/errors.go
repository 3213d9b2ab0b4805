package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"paperlib-sync-server/internal/middleware"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/pkg/response"
)

const ClientIDHeader = middleware.ClientIDHeader

func writeServiceError(w http.ResponseWriter, err error) {
	var invalid *service.InvalidChangeError

	switch {
	case errors.Is(err, service.ErrBatchTooLarge):
		response.TooLarge(w, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrRecordDeleted):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrVersionConflict), errors.Is(err, service.ErrDuplicateDOI):
		response.Conflict(w, err.Error())
	case errors.As(err, &invalid), errors.Is(err, service.ErrPaperNotFound):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}

// decodeBody reads a JSON body of at most maxBytes. It writes the error
// response itself and reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "request body too large")
			return false
		}
		response.BadRequest(w, "Invalid request body")
		return false
	}
	return true
}
