package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"import_panel/internal/models"
	"import_panel/internal/panel"
	"import_panel/internal/service"
)

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := request(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !json.Valid(w.Body.Bytes()) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestMountPanel(t *testing.T) {
	panels := &mockPanels{mountID: "p-1"}
	r := newTestRouter(&service.Service{Panels: panels})

	w := request(r, http.MethodPost, "/api/v1/panels", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing config id: expected 400, got %d", w.Code)
	}

	w = request(r, http.MethodPost, "/api/v1/panels", `{"import_config_id":"cfg-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("mount: %d %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["id"] != "p-1" || panels.lastConfig != "cfg-1" {
		t.Fatalf("resp=%v config=%q", resp, panels.lastConfig)
	}

	panels.mountErr = errors.New("boom")
	if w := request(r, http.MethodPost, "/api/v1/panels", `{"import_config_id":"cfg-1"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("mount error: expected 500, got %d", w.Code)
	}
}

func TestPanelRoutes_UnknownPanel(t *testing.T) {
	r := newTestRouter(&service.Service{Panels: &mockPanels{panels: map[string]*mockPanel{}}})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/panels/nope"},
		{http.MethodDelete, "/api/v1/panels/nope"},
		{http.MethodGet, "/api/v1/panels/nope/logs"},
		{http.MethodPost, "/api/v1/panels/nope/stop"},
	} {
		if w := request(r, tc.method, tc.path, ""); w.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestGetPanelAndUnmount(t *testing.T) {
	p := &mockPanel{snap: panel.Snapshot{ImportConfigID: "cfg-1", State: panel.StateConnected, Percent: 40}}
	panels := withPanel("p-1", p)
	r := newTestRouter(&service.Service{Panels: panels})

	w := request(r, http.MethodGet, "/api/v1/panels/p-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot: %d %s", w.Code, w.Body.String())
	}
	var s panel.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil || s.Percent != 40 || s.State != panel.StateConnected {
		t.Fatalf("snapshot body: %+v %v", s, err)
	}

	if w := request(r, http.MethodGet, "/api/v1/panels", ""); w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}

	if w := request(r, http.MethodDelete, "/api/v1/panels/p-1", ""); w.Code != http.StatusOK || len(panels.unmounted) != 1 {
		t.Fatalf("unmount: %d %v", w.Code, panels.unmounted)
	}

	p.err = panel.ErrClosed
	panels.panels["p-2"] = p
	if w := request(r, http.MethodGet, "/api/v1/panels/p-2", ""); w.Code != http.StatusGone {
		t.Fatalf("closed panel: expected 410, got %d", w.Code)
	}
}

func TestGetPanelLogs(t *testing.T) {
	p := &mockPanel{lines: []models.LogLine{{Level: "info", Message: "a"}, {Level: "info", Message: "b"}}}
	r := newTestRouter(&service.Service{Panels: withPanel("p-1", p)})

	if w := request(r, http.MethodGet, "/api/v1/panels/p-1/logs?offset=-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("negative offset: expected 400, got %d", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/v1/panels/p-1/logs?offset=x", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad offset: expected 400, got %d", w.Code)
	}

	w := request(r, http.MethodGet, "/api/v1/panels/p-1/logs?offset=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logs: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Lines []models.LogLine `json:"lines"`
		Next  int              `json:"next"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Lines) != 2 || resp.Next != 12 || p.lastFrom != 10 {
		t.Fatalf("resp=%+v from=%d", resp, p.lastFrom)
	}
}

func TestGetFinished(t *testing.T) {
	p := &mockPanel{page: panel.RecordPage{Type: models.RecordErrored, Page: 2, PerPage: 5, Total: 7, Pages: 2}}
	r := newTestRouter(&service.Service{Panels: withPanel("p-1", p)})

	if w := request(r, http.MethodGet, "/api/v1/panels/p-1/finished?type=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad type: expected 400, got %d", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/v1/panels/p-1/finished?page=two", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad page: expected 400, got %d", w.Code)
	}

	w := request(r, http.MethodGet, "/api/v1/panels/p-1/finished?type=ERRORED&page=2&per_page=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("finished: %d %s", w.Code, w.Body.String())
	}
	if p.lastType != models.RecordErrored || p.lastPage != 2 || p.lastPer != 5 {
		t.Fatalf("args: type=%q page=%d per=%d", p.lastType, p.lastPage, p.lastPer)
	}

	request(r, http.MethodGet, "/api/v1/panels/p-1/finished?type=all", "")
	if p.lastType != "" || p.lastPage != 1 || p.lastPer != 0 {
		t.Fatalf("defaults: type=%q page=%d per=%d", p.lastType, p.lastPage, p.lastPer)
	}
}

func TestSelectAndStop(t *testing.T) {
	p := &mockPanel{}
	r := newTestRouter(&service.Service{Panels: withPanel("p-1", p)})

	if w := request(r, http.MethodPost, "/api/v1/panels/p-1/select", `{"job":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing job_id: expected 400, got %d", w.Code)
	}
	if w := request(r, http.MethodPost, "/api/v1/panels/p-1/select", `{"job_id":"j2"}`); w.Code != http.StatusOK || p.selected != "j2" {
		t.Fatalf("select: %d selected=%q", w.Code, p.selected)
	}
	if w := request(r, http.MethodPost, "/api/v1/panels/p-1/stop", ""); w.Code != http.StatusAccepted || p.stopCalls != 1 {
		t.Fatalf("stop: %d calls=%d", w.Code, p.stopCalls)
	}

	cases := []struct {
		err  error
		path string
		want int
	}{
		{panel.ErrUnknownJob, "/api/v1/panels/p-1/select", http.StatusNotFound},
		{panel.ErrNotConnected, "/api/v1/panels/p-1/select", http.StatusConflict},
		{panel.ErrNoJobSelected, "/api/v1/panels/p-1/stop", http.StatusConflict},
		{errors.New("emit failed"), "/api/v1/panels/p-1/stop", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		p.err = tc.err
		if w := request(r, http.MethodPost, tc.path, `{"job_id":"j9"}`); w.Code != tc.want {
			t.Fatalf("%v on %s: expected %d, got %d", tc.err, tc.path, tc.want, w.Code)
		}
	}
}
