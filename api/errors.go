package api

import (
	"encoding/json"
	"net/http"

	"github.com/littlewalk/go-walk/models"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

var kindStatus = map[models.ErrorKind]int{
	models.ErrorKind_NotFound:           http.StatusNotFound,
	models.ErrorKind_PreconditionFailed: http.StatusConflict,
	models.ErrorKind_Validation:         http.StatusBadRequest,
	models.ErrorKind_Forbidden:          http.StatusForbidden,
	models.ErrorKind_RateLimited:        http.StatusTooManyRequests,
	models.ErrorKind_BackendUnavailable: http.StatusServiceUnavailable,
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger models.Logger, err error) {
	kind := models.KindOf(err)
	message := err.Error()
	if kind == models.ErrorKind_BackendUnavailable {
		// Driver errors stay in the log
		logger.Errorf("api: backend failure: %v", err)
		message = models.ErrBackendUnavailable.Error()
	}
	writeJSON(w, kindStatus[kind], errorResponse{errorBody{string(kind), message}})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{errorBody{"UNAUTHORIZED", message}})
}
