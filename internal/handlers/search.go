package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/entries"
)

// SearchHandler serves search, inject, link, and the store-wide
// reporting endpoints
type SearchHandler struct {
	svc *entries.Service
}

// NewSearchHandler creates the search handler
func NewSearchHandler(svc *entries.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// RegisterRoutes mounts the search endpoints on the API subrouter
func (h *SearchHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/search", h.HandleSearch).Methods("POST")
	api.HandleFunc("/inject", h.HandleInject).Methods("POST")
	api.HandleFunc("/link", h.HandleLink).Methods("POST")
	api.HandleFunc("/stats", h.HandleStats).Methods("GET")
	api.HandleFunc("/orphans", h.HandleOrphans).Methods("GET")
	api.HandleFunc("/stale", h.HandleStale).Methods("GET")
}

// HandleSearch runs a full-text query
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req entries.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 10
	}

	hits, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": hits,
		"total":   len(hits),
	})
}

// HandleInject composes a context block for agent prompts
func (h *SearchHandler) HandleInject(w http.ResponseWriter, r *http.Request) {
	var req entries.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Limit <= 0 || req.Limit > 20 {
		req.Limit = 5
	}

	res, err := h.svc.Inject(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleLink resolves a ref to a canonical markdown link
func (h *SearchHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Ref == "" {
		writeError(w, brainerr.Validation("ref is required",
			brainerr.FieldError{Field: "ref", Message: "must not be empty"}))
		return
	}

	link, err := h.svc.GenerateLink(r.Context(), req.Ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// HandleStats summarizes the store
func (h *SearchHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleOrphans lists entries with no links either way
func (h *SearchHandler) HandleOrphans(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.svc.ListOrphans(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": list,
		"total":   len(list),
	})
}

// HandleStale lists entries past their verification window
func (h *SearchHandler) HandleStale(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30, 365)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.svc.ListStale(r.Context(), days, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": list,
		"days":    days,
		"total":   len(list),
	})
}
