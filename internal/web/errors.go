package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tabledock/tabledock/internal/core"
	"github.com/tabledock/tabledock/internal/logging"
)

// ErrorResponse is the JSON body returned for every API error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code,omitempty"`
}

// writeJSON writes v as a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a plain error message without consulting the error
// taxonomy. Used where the message is already user-facing.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSONStatus(w, status, ErrorResponse{Error: msg})
}

// respondError translates err into a user-facing message via the error
// taxonomy, logs the original error, and writes the JSON response.
func respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	log := logging.FromContext(r.Context())
	userMsg := core.MapError(err)

	log.Error("request failed",
		"code", userMsg.Code,
		"status", status,
		"error", err,
	)

	writeJSONStatus(w, status, ErrorResponse{
		Error:  userMsg.Message,
		Action: userMsg.Action,
		Code:   userMsg.Code,
	})
}

// statusForError picks an HTTP status for errors coming out of the core
// service, defaulting to 500 for anything unrecognized.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrTableNotFound), errors.Is(err, core.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	default:
		var mapErr *core.MappingError
		if errors.As(err, &mapErr) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}
