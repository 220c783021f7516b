package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"go.uber.org/zap"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. Unclassified errors
// are reported as internal without leaking the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPermission:
		status = http.StatusForbidden
	case apperr.KindStateConflict:
		status = http.StatusConflict
	case apperr.KindExpired:
		status = http.StatusGone
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request_failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, errorResponse{Error: errorBody{
			Code:    "INTERNAL_ERROR",
			Message: "internal error",
		}})
		return
	}

	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    apperr.CodeOf(err),
		Message: apperr.MessageOf(err),
	}})
}
