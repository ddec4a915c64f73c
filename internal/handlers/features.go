package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CLIAIBRAIN/internal/features"
	"github.com/CLIAIBRAIN/internal/types"
)

// FeaturesHandler serves the feature-level aggregations, paralleling
// the task endpoints
type FeaturesHandler struct {
	classifier *Classifier
}

// NewFeaturesHandler creates the features handler
func NewFeaturesHandler(classifier *Classifier) *FeaturesHandler {
	return &FeaturesHandler{classifier: classifier}
}

// RegisterRoutes mounts the feature endpoints on the API subrouter
func (h *FeaturesHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/features", h.HandleProjects).Methods("GET")

	p := "/features/{projectId:" + projectIDPattern + "}"
	api.HandleFunc(p, h.HandleAggregated).Methods("GET")
	api.HandleFunc(p+"/next", h.HandleNext).Methods("GET")
	api.HandleFunc(p+"/{projection:ready|waiting|blocked}", h.HandleProjection).Methods("GET")
}

func (h *FeaturesHandler) aggregate(r *http.Request) (types.FeatureResult, error) {
	result, err := h.classifier.Classified(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		return types.FeatureResult{}, err
	}
	return features.Aggregate(result.Tasks), nil
}

// HandleProjects lists projects that have tasks
func (h *FeaturesHandler) HandleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.classifier.Projects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"total":    len(projects),
	})
}

// HandleAggregated returns every feature with stats and cycles
func (h *FeaturesHandler) HandleAggregated(w http.ResponseWriter, r *http.Request) {
	result, err := h.aggregate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleProjection returns the ready, waiting, or blocked features
func (h *FeaturesHandler) HandleProjection(w http.ResponseWriter, r *http.Request) {
	result, err := h.aggregate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var list []types.Feature
	switch mux.Vars(r)["projection"] {
	case "ready":
		list = features.Ready(result)
	case "waiting":
		list = features.Waiting(result)
	case "blocked":
		list = features.Blocked(result)
	}
	if list == nil {
		list = []types.Feature{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features": list,
		"total":    len(list),
	})
}

// HandleNext returns the top ready feature
func (h *FeaturesHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	result, err := h.aggregate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	next := features.Next(result)
	if next == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"feature": nil,
			"message": "no ready features",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feature": next})
}
