// Package apiclient is the runner's HTTP client for the brain API. It
// is safe for concurrent use; multi-project mode shares one client
// across scheduler loops.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/types"
)

// Client talks to one brain API server
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the given base URL ("http://host:port")
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Health is the server's health report
type Health struct {
	Status           string `json:"status"`
	BackendAvailable bool   `json:"backendAvailable"`
	DBAvailable      bool   `json:"dbAvailable"`
	Timestamp        string `json:"timestamp"`
}

// CheckHealth probes GET /health
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// taskListResponse is the wire shape of the task projection endpoints
type taskListResponse struct {
	Tasks []types.ClassifiedTask `json:"tasks"`
	Total int                    `json:"total"`
}

// ReadyTasks fetches the ordered ready projection for a project
func (c *Client) ReadyTasks(ctx context.Context, project string) ([]types.ClassifiedTask, error) {
	var res taskListResponse
	if err := c.get(ctx, "/api/v1/tasks/"+project+"/ready", &res); err != nil {
		return nil, err
	}
	return res.Tasks, nil
}

// ClassifiedTasks fetches the full classified set for a project
func (c *Client) ClassifiedTasks(ctx context.Context, project string) (*types.ClassificationResult, error) {
	var res types.ClassificationResult
	if err := c.get(ctx, "/api/v1/tasks/"+project, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// InProgressTasks returns the project's tasks currently in_progress
func (c *Client) InProgressTasks(ctx context.Context, project string) ([]types.ClassifiedTask, error) {
	res, err := c.ClassifiedTasks(ctx, project)
	if err != nil {
		return nil, err
	}
	var out []types.ClassifiedTask
	for i := range res.Tasks {
		if res.Tasks[i].Status == types.StatusInProgress {
			out = append(out, res.Tasks[i])
		}
	}
	return out, nil
}

// Projects lists the projects that have tasks
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var res struct {
		Projects []string `json:"projects"`
	}
	if err := c.get(ctx, "/api/v1/tasks", &res); err != nil {
		return nil, err
	}
	return res.Projects, nil
}

// Claim attempts to lease a task for this runner. A 409 comes back as
// a Conflict error carrying the existing claim.
func (c *Client) Claim(ctx context.Context, project, taskID, runnerID string) error {
	body := map[string]string{"runnerId": runnerID}
	return c.post(ctx, "/api/v1/tasks/"+project+"/"+taskID+"/claim", body, nil)
}

// Release drops the lease; idempotent
func (c *Client) Release(ctx context.Context, project, taskID string) error {
	return c.post(ctx, "/api/v1/tasks/"+project+"/"+taskID+"/release", struct{}{}, nil)
}

// ClaimStatus reads the current lease for a task
func (c *Client) ClaimStatus(ctx context.Context, project, taskID string) (*types.ClaimStatus, error) {
	var res types.ClaimStatus
	if err := c.get(ctx, "/api/v1/tasks/"+project+"/"+taskID+"/claim-status", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateStatus transitions a task's status, optionally appending a note
func (c *Client) UpdateStatus(ctx context.Context, ref string, status types.EntryStatus, note string) error {
	body := map[string]string{"status": string(status)}
	if note != "" {
		body["note"] = note
	}
	return c.patch(ctx, "/api/v1/entries/"+ref, body, nil)
}

// GetEntry fetches one full entry
func (c *Client) GetEntry(ctx context.Context, ref string) (*types.Entry, error) {
	var e types.Entry
	if err := c.get(ctx, "/api/v1/entries/"+ref, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// errorBody is the wire shape of a mapped service error
type errorBody struct {
	Error       string                `json:"error"`
	Kind        string                `json:"kind"`
	Details     []brainerr.FieldError `json:"details,omitempty"`
	Suggestions []brainerr.Suggestion `json:"suggestions,omitempty"`
	ClaimedBy   string                `json:"claimedBy,omitempty"`
	ClaimedAt   int64                 `json:"claimedAt,omitempty"`
	IsStale     bool                  `json:"isStale,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return brainerr.Internal("encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return brainerr.Internal("build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// transport failures are retryable; the loop waits one poll
		return brainerr.Unavailable("api unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return brainerr.Io("decode response", err)
		}
		return nil
	}

	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	json.Unmarshal(data, &eb)
	msg := eb.Error
	if msg == "" {
		msg = fmt.Sprintf("%s %s: http %d", method, path, resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return brainerr.NotFound(msg)
	case http.StatusConflict:
		return brainerr.Conflict(msg, &types.ClaimInfo{
			ClaimedBy: eb.ClaimedBy,
			ClaimedAt: eb.ClaimedAt,
			IsStale:   eb.IsStale,
		})
	case http.StatusServiceUnavailable:
		return brainerr.Unavailable(msg)
	case http.StatusBadRequest:
		return brainerr.Validation(msg, eb.Details...)
	default:
		if resp.StatusCode >= 500 {
			return brainerr.Unavailable(msg)
		}
		return brainerr.Internal(msg, nil)
	}
}
