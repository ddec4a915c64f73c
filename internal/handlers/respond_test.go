package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/types"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{brainerr.Validation("bad"), http.StatusBadRequest},
		{brainerr.Ambiguous("tied", nil), http.StatusBadRequest},
		{brainerr.NotFound("gone"), http.StatusNotFound},
		{brainerr.Conflict("held", nil), http.StatusConflict},
		{brainerr.Unavailable("no index"), http.StatusServiceUnavailable},
		{brainerr.Io("disk", nil), http.StatusInternalServerError},
		{brainerr.Internal("boom", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("%v -> %d, want %d", tc.err, rec.Code, tc.want)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
	}
}

func TestWriteErrorConflictCarriesClaim(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, brainerr.Conflict("task already claimed", &types.ClaimInfo{
		ClaimedBy: "runner-abc12345",
		ClaimedAt: 1700000000000,
		IsStale:   false,
	}))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["claimedBy"] != "runner-abc12345" {
		t.Errorf("claimedBy = %v", body["claimedBy"])
	}
	if body["isStale"] != false {
		t.Errorf("isStale = %v, want explicit false", body["isStale"])
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?limit=250&days=abc", nil)

	if n, err := queryInt(req, "limit", 20, 100); err != nil || n != 100 {
		t.Errorf("limit = %d, %v; want capped 100", n, err)
	}
	if n, err := queryInt(req, "missing", 20, 100); err != nil || n != 20 {
		t.Errorf("default = %d, %v; want 20", n, err)
	}
	if _, err := queryInt(req, "days", 30, 365); !brainerr.IsKind(err, brainerr.KindValidation) {
		t.Errorf("non-numeric err = %v, want validation", err)
	}
}
