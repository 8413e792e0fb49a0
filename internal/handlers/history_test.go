package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"import_panel/internal/models"
	"import_panel/internal/repository"
	"import_panel/internal/service"
)

func TestListHistory(t *testing.T) {
	hist := &mockHistory{jobs: []models.JobArchive{{JobID: "j1"}, {JobID: "j2"}}}
	r := newTestRouter(&service.Service{History: hist})

	if w := request(r, http.MethodGet, "/api/v1/history?from=notatime", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad from: expected 400, got %d", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/v1/history?to=31-08-2026", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad to: expected 400, got %d", w.Code)
	}

	w := request(r, http.MethodGet, "/api/v1/history?config_id=cfg-1&from=2026-08-01&to=2026-08-31", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Fatalf("count = %d", resp.Count)
	}
	f := hist.lastFilter
	wantTo := time.Date(2026, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if f.ConfigID != "cfg-1" || !f.From.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) || !f.To.Equal(wantTo) {
		t.Fatalf("filter: %+v", f)
	}

	hist.err = fmt.Errorf("%w: from after to", service.ErrInvalidFilter)
	if w := request(r, http.MethodGet, "/api/v1/history", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid filter: expected 400, got %d", w.Code)
	}
	hist.err = fmt.Errorf("db down")
	if w := request(r, http.MethodGet, "/api/v1/history", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("db error: expected 500, got %d", w.Code)
	}
}

func TestHistoryJobDetails(t *testing.T) {
	hist := &mockHistory{
		job:     models.JobArchive{JobID: "j1", Logs: []models.LogLine{{Message: "a"}}},
		lines:   []models.LogLine{{Level: "error", Message: "boom"}},
		records: []models.FinishedRecord{{Type: models.RecordErrored}},
	}
	r := newTestRouter(&service.Service{History: hist})

	w := request(r, http.MethodGet, "/api/v1/history/j1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var a models.JobArchive
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil || a.JobID != "j1" || len(a.Logs) != 1 {
		t.Fatalf("archive: %+v %v", a, err)
	}

	if w := request(r, http.MethodGet, "/api/v1/history/j1/logs?level=error", ""); w.Code != http.StatusOK || hist.lastLevel != "error" {
		t.Fatalf("logs: %d level=%q", w.Code, hist.lastLevel)
	}
	if w := request(r, http.MethodGet, "/api/v1/history/j1/records?type=errored", ""); w.Code != http.StatusOK || hist.lastType != "errored" {
		t.Fatalf("records: %d type=%q", w.Code, hist.lastType)
	}

	hist.err = repository.ErrNotFound
	if w := request(r, http.MethodGet, "/api/v1/history/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", w.Code)
	}
}

func TestParseQueryTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-08-27T15:04:05+02:00", time.Date(2026, 8, 27, 13, 4, 5, 0, time.UTC), true},
		{"2026-08-27 15:04:05", time.Date(2026, 8, 27, 15, 4, 5, 0, time.UTC), true},
		{"2026-08-27", time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := parseQueryTime(tc.in)
		if (err == nil) != tc.ok || !got.Equal(tc.want) {
			t.Fatalf("parseQueryTime(%q) = %v, %v", tc.in, got, err)
		}
	}
}
