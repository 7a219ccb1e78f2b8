// Package handler implements the JSON API. Every handler scopes its queries
// to the caller's family and publishes each write on the realtime hub.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/ledger"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "invalid_request", msg)
}

func notFound(w http.ResponseWriter, what string) {
	writeError(w, http.StatusNotFound, "not_found", what+" not found")
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "forbidden", "not allowed")
}

func internalError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", msg)
}

// writeLedgerError maps a ledger sentinel to its status and code. The message
// is the error text, so callers see e.g. the balance and cost.
func writeLedgerError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var status int
	switch code := ledger.Code(err); code {
	case "insufficient_balance", "invalid_state":
		status = http.StatusConflict
	case "forbidden":
		status = http.StatusForbidden
	case "not_found":
		status = http.StatusNotFound
	default:
		internalError(w, logger, "ledger operation failed", err)
		return
	}
	writeError(w, status, ledger.Code(err), err.Error())
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			badRequest(w, "request body too large")
			return false
		}
		badRequest(w, "invalid JSON")
		return false
	}
	return true
}

func pathID(r *http.Request, name string) string {
	return strings.TrimSpace(r.PathValue(name))
}

func actor(r *http.Request) ledger.Actor {
	ac, _ := auth.FromContext(r.Context())
	return ledger.Actor{ProfileID: ac.ProfileID, FamilyID: ac.FamilyID}
}

// strPtr returns nil for an empty string.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
