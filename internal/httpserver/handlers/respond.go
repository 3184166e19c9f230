package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/bookmarks"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an operation error to its HTTP status and user message.
func statusFor(err error) (int, string) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}
	if errors.Is(err, bookmarks.ErrNotFound) {
		return http.StatusNotFound, "bookmark not found"
	}

	var be *backend.Error
	if errors.As(err, &be) {
		switch be.Kind {
		case backend.KindConstraint:
			return http.StatusUnprocessableEntity, backend.UserMessage(err, "rejected by the store")
		case backend.KindAuth:
			return http.StatusUnauthorized, backend.UserMessage(err, "not signed in")
		}
	}
	return http.StatusBadGateway, backend.UserMessage(err, "backend unavailable")
}

// writeError answers with the mapped status; 5xx causes are logged.
func writeError(w http.ResponseWriter, log logger.Logger, op string, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Warn(op+" failed", logger.Error(err))
	} else {
		log.Debug(op+" rejected", logger.Int("status", status), logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: message})
}
