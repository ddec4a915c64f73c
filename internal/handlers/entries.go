package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/entries"
	"github.com/CLIAIBRAIN/internal/metrics"
	"github.com/CLIAIBRAIN/internal/types"
)

// entryIDPattern is the mux constraint for 8-char entry ids
const entryIDPattern = "[a-z0-9]{8}"

// EntriesHandler serves the entry CRUD, section, and graph endpoints
type EntriesHandler struct {
	svc *entries.Service
}

// NewEntriesHandler creates the entries handler
func NewEntriesHandler(svc *entries.Service) *EntriesHandler {
	return &EntriesHandler{svc: svc}
}

// RegisterRoutes mounts the entry endpoints on the API subrouter.
// Fixed-shape routes go first; the variadic-tail ref routes catch the
// rest, so an entry path like projects/p/task/ab12cd34-x.md resolves.
func (h *EntriesHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/entries", h.HandleCreate).Methods("POST")
	api.HandleFunc("/entries", h.HandleList).Methods("GET")

	id := "/entries/{id:" + entryIDPattern + "}"
	api.HandleFunc(id+"/sections", h.HandleSections).Methods("GET")
	api.HandleFunc(id+"/sections/{title}", h.HandleSection).Methods("GET")
	api.HandleFunc(id+"/{kind:backlinks|outlinks|related}", h.HandleGraph).Methods("GET")
	api.HandleFunc(id+"/verify", h.HandleVerify).Methods("POST")

	api.HandleFunc("/entries/{ref:.+}", h.HandleGet).Methods("GET")
	api.HandleFunc("/entries/{ref:.+}", h.HandleUpdate).Methods("PATCH")
	api.HandleFunc("/entries/{ref:.+}", h.HandleDelete).Methods("DELETE")
}

// refVar pulls the entry ref route variable, percent-decoded once
func refVar(r *http.Request, name string) string {
	raw := mux.Vars(r)[name]
	if dec, err := url.PathUnescape(raw); err == nil {
		return dec
	}
	return raw
}

// HandleCreate creates an entry
func (h *EntriesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req entries.CreateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.EntriesCreatedTotal.WithLabelValues(string(res.Type)).Inc()
	writeJSON(w, http.StatusCreated, res)
}

// HandleList returns a filtered, paginated entry listing
func (h *EntriesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 50, 500)
	if err != nil {
		writeError(w, err)
		return
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		if offset, err = queryInt(r, "offset", 0, 0); err != nil {
			writeError(w, err)
			return
		}
	}

	req := entries.ListRequest{
		Type:     types.EntryType(q.Get("type")),
		Status:   types.EntryStatus(q.Get("status")),
		ParentID: q.Get("parent_id"),
		Project:  q.Get("project_id"),
		Global:   q.Get("global") == "true",
		Filename: q.Get("filename"),
		SortBy:   q.Get("sortBy"),
		Limit:    limit,
		Offset:   offset,
	}
	if req.ParentID != "" && !types.ValidEntryID(req.ParentID) {
		writeError(w, brainerr.Validation("invalid parent_id",
			brainerr.FieldError{Field: "parent_id", Message: "must be an 8-char entry id"}))
		return
	}

	res, err := h.svc.List(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGet returns one full entry with content
func (h *EntriesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Recall(r.Context(), refVar(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.EntriesRecalledTotal.Inc()
	writeJSON(w, http.StatusOK, res)
}

// HandleUpdate applies a field-level update
func (h *EntriesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req entries.UpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.svc.Update(r.Context(), refVar(r, "ref"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleDelete removes an entry; requires confirm=true
func (h *EntriesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, brainerr.Validation("deletion requires confirm=true",
			brainerr.FieldError{Field: "confirm", Message: "must be true"}))
		return
	}

	entry, err := h.svc.Delete(r.Context(), refVar(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
		"id":      entry.ID,
		"path":    entry.Path,
	})
}

// HandleSections lists the h2/h3 headers of an entry
func (h *EntriesHandler) HandleSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.svc.Sections(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sections": sections,
		"total":    len(sections),
	})
}

// HandleSection extracts one named section
func (h *EntriesHandler) HandleSection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	include := r.URL.Query().Get("includeSubsections") == "true"

	title := vars["title"]
	if dec, err := url.PathUnescape(title); err == nil {
		title = dec
	}

	content, err := h.svc.Section(r.Context(), vars["id"], title, include)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"title":   title,
		"content": content,
	})
}

// HandleGraph serves the backlinks/outlinks/related projections
func (h *EntriesHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, err := queryInt(r, "limit", 20, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.svc.Graph(r.Context(), vars["id"], entries.GraphKind(vars["kind"]), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": list,
		"total":   len(list),
	})
}

// HandleVerify bumps the last-verified timestamp
func (h *EntriesHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	at, err := h.svc.Verify(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified":      true,
		"last_verified": at.Format(time.RFC3339),
	})
}
