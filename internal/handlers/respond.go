// Package handlers holds the HTTP handler layer: thin adapters that
// decode requests, call the services, and map typed errors to status
// codes mechanically.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/logging"
)

// MaxPayloadSize caps request bodies to prevent memory exhaustion
const MaxPayloadSize = 1 << 20 // 1MB

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logging.WithComponent("http")
		log.Error().Err(err).Msg("response encode failed")
	}
}

// errorResponse is the wire shape every failure uses. Conflict
// responses flatten the existing claim into the top level so runners
// can read it without a second request.
type errorResponse struct {
	Error       string                `json:"error"`
	Kind        brainerr.Kind         `json:"kind"`
	Details     []brainerr.FieldError `json:"details,omitempty"`
	Suggestions []brainerr.Suggestion `json:"suggestions,omitempty"`
	ClaimedBy   string                `json:"claimedBy,omitempty"`
	ClaimedAt   int64                 `json:"claimedAt,omitempty"`
	IsStale     *bool                 `json:"isStale,omitempty"`
}

// writeError maps a service error to its HTTP status per the taxonomy
func writeError(w http.ResponseWriter, err error) {
	e := brainerr.AsError(err)

	var status int
	switch e.Kind {
	case brainerr.KindValidation, brainerr.KindAmbiguousMatch:
		status = http.StatusBadRequest
	case brainerr.KindNotFound:
		status = http.StatusNotFound
	case brainerr.KindConflict:
		status = http.StatusConflict
	case brainerr.KindBackendUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	resp := errorResponse{
		Error:       e.Message,
		Kind:        e.Kind,
		Details:     e.Details,
		Suggestions: e.Suggestions,
	}
	if e.Claim != nil {
		resp.ClaimedBy = e.Claim.ClaimedBy
		resp.ClaimedAt = e.Claim.ClaimedAt
		stale := e.Claim.IsStale
		resp.IsStale = &stale
	}
	writeJSON(w, status, resp)
}

// decodeBody parses a size-capped JSON request body
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPayloadSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return brainerr.Validation("invalid request body: " + err.Error())
	}
	return nil
}

// queryInt parses an integer query parameter, clamped to [1, cap],
// with def when absent
func queryInt(r *http.Request, name string, def, cap int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, brainerr.Validation("invalid "+name,
			brainerr.FieldError{Field: name, Message: "must be a positive integer"})
	}
	if cap > 0 && n > cap {
		n = cap
	}
	return n, nil
}
