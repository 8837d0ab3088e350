package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/trivia/internal/game"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// statusFor maps a game error onto an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, game.ErrMissingCredential) {
		return http.StatusUnauthorized
	}
	switch game.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "state_conflict":
		return http.StatusConflict
	case "not_found":
		return http.StatusNotFound
	case "exhausted":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeGameError reports err with its kind. Internal errors are not echoed.
func writeGameError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := game.Kind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, kind, msg)
}
