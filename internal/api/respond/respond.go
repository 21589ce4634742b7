// Package respond holds the JSON response helpers shared by the ops
// endpoints.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/guildboard/guildboard/internal/model"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

// WriteDomainError maps the domain error taxonomy onto HTTP status codes.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrAlreadyRunning):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrSourceUnavailable):
		WriteError(w, http.StatusBadGateway, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
