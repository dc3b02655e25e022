package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starford/raido/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type okResponse struct {
	Success bool `json:"success" example:"true"`
	Result  any  `json:"result"`
}

type errResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" validate:"required"`
}

func okBody(result any) okResponse {
	return okResponse{Success: true, Result: result}
}

func errorBody(msg string) errResponse {
	return errResponse{Message: msg}
}

// writeError maps err to a status code and replies with its message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var se *apperr.StoreError
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, apperr.ErrInvalid), errors.Is(err, apperr.ErrNoChanges):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, apperr.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, apperr.ErrConflict):
		status, msg = http.StatusConflict, "branch changed since it was read, reload and retry: "+err.Error()
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrDiverged):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, apperr.ErrUnsupported):
		status, msg = http.StatusNotImplemented, err.Error()
	case errors.As(err, &se):
		status, msg = http.StatusBadGateway, fmt.Sprintf("repository error (status %d): %s", se.StatusCode, se.Op)
	}
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		slog.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(msg))
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", apperr.ErrInvalid, err)
	}
	return nil
}
