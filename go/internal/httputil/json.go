package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// WriteJSON encodes v with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// DecodeJSON reads a JSON request body into dst
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// ErrBadRequest marks malformed input that never reached the domain
var ErrBadRequest = errors.New("bad request")

// StatusFor maps the error taxonomy onto HTTP status codes
func StatusFor(err error) int {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err using StatusFor. Validation failures list every problem.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var ve *models.ValidationError
	if errors.As(err, &ve) {
		resp.Error = "validation failed"
		resp.Problems = ve.Problems
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		resp.Error = "internal error"
	}
	WriteJSON(w, status, resp)
}

// BadRequest wraps err so StatusFor reports 400
func BadRequest(err error) error {
	return fmt.Errorf("%w: %v", ErrBadRequest, err)
}
