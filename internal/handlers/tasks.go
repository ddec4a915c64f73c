package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/claims"
	"github.com/CLIAIBRAIN/internal/deps"
	"github.com/CLIAIBRAIN/internal/metrics"
	"github.com/CLIAIBRAIN/internal/types"
)

// projectIDPattern is the mux constraint for project ids
const projectIDPattern = "[A-Za-z0-9_-]+"

// TasksHandler serves the classified task projections and the claim
// lifecycle
type TasksHandler struct {
	classifier *Classifier
	claims     *claims.Registry
}

// NewTasksHandler creates the tasks handler
func NewTasksHandler(classifier *Classifier, registry *claims.Registry) *TasksHandler {
	return &TasksHandler{classifier: classifier, claims: registry}
}

// RegisterRoutes mounts the task endpoints on the API subrouter
func (h *TasksHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/tasks", h.HandleProjects).Methods("GET")

	p := "/tasks/{projectId:" + projectIDPattern + "}"
	api.HandleFunc(p, h.HandleClassified).Methods("GET")
	api.HandleFunc(p+"/next", h.HandleNext).Methods("GET")
	api.HandleFunc(p+"/{projection:ready|waiting|blocked}", h.HandleProjection).Methods("GET")

	t := p + "/{taskId:" + entryIDPattern + "}"
	api.HandleFunc(t+"/claim", h.HandleClaim).Methods("POST")
	api.HandleFunc(t+"/release", h.HandleRelease).Methods("POST")
	api.HandleFunc(t+"/claim-status", h.HandleClaimStatus).Methods("GET")
}

// HandleProjects lists projects that have tasks
func (h *TasksHandler) HandleProjects(w http.ResponseWriter, r *http.Request) {
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

// HandleClassified returns the full classified set with stats and
// cycles
func (h *TasksHandler) HandleClassified(w http.ResponseWriter, r *http.Request) {
	result, err := h.classifier.Classified(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleProjection returns the ready, waiting, or blocked slice
func (h *TasksHandler) HandleProjection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := h.classifier.Classified(r.Context(), vars["projectId"])
	if err != nil {
		writeError(w, err)
		return
	}

	var tasks []types.ClassifiedTask
	switch vars["projection"] {
	case "ready":
		tasks = deps.Ready(result)
	case "waiting":
		tasks = deps.Waiting(result)
	case "blocked":
		tasks = deps.Blocked(result)
	}
	if tasks == nil {
		tasks = []types.ClassifiedTask{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// HandleNext returns the top ready task
func (h *TasksHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	result, err := h.classifier.Classified(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		writeError(w, err)
		return
	}

	next := deps.Next(result)
	if next == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"task":    nil,
			"message": "no ready tasks",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"task": next})
}

// HandleClaim leases a task to a runner
func (h *TasksHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, taskID := vars["projectId"], vars["taskId"]

	var req struct {
		RunnerID string `json:"runnerId"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RunnerID == "" {
		writeError(w, brainerr.Validation("runnerId is required",
			brainerr.FieldError{Field: "runnerId", Message: "must not be empty"}))
		return
	}

	if !h.taskExists(r, project, taskID) {
		writeError(w, brainerr.NotFoundf("no task %s in project %s", taskID, project))
		return
	}

	prior := h.claims.Status(project, taskID)
	res := h.claims.Claim(project, taskID, req.RunnerID)
	if !res.Success {
		metrics.ClaimConflictsTotal.Inc()
		writeError(w, brainerr.Conflict("task already claimed", res.Existing))
		return
	}
	if prior.Claimed && prior.Claim.IsStale && prior.Claim.ClaimedBy != req.RunnerID {
		metrics.StaleClaimOverridesTotal.Inc()
	}
	metrics.ClaimsActive.WithLabelValues(project).Set(float64(h.claims.CountProject(project)))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"claim":   res.Existing,
	})
}

// HandleRelease drops a lease; always succeeds
func (h *TasksHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, taskID := vars["projectId"], vars["taskId"]

	released := h.claims.Release(project, taskID)
	metrics.ClaimsActive.WithLabelValues(project).Set(float64(h.claims.CountProject(project)))

	resp := map[string]interface{}{"success": true, "released": released}
	if !released {
		resp["message"] = "no claim existed"
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleClaimStatus reads the current lease
func (h *TasksHandler) HandleClaimStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, h.claims.Status(vars["projectId"], vars["taskId"]))
}

// taskExists checks the classified set for the task id
func (h *TasksHandler) taskExists(r *http.Request, project, taskID string) bool {
	result, err := h.classifier.Classified(r.Context(), project)
	if err != nil {
		return false
	}
	for i := range result.Tasks {
		if result.Tasks[i].ID == taskID {
			return true
		}
	}
	return false
}
