package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"import_panel/internal/ckan"
	"import_panel/internal/models"
	"import_panel/internal/service"
)

func TestListConfigs(t *testing.T) {
	cfgs := &mockConfigs{list: []models.ImportConfig{{ID: "c1", Name: "one"}, {ID: "c2", Name: "two"}}}
	r := newTestRouter(&service.Service{Configs: cfgs})

	w := request(r, http.MethodGet, "/api/v1/configs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count   int                   `json:"count"`
		Configs []models.ImportConfig `json:"configs"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 || resp.Configs[1].ID != "c2" {
		t.Fatalf("resp: %+v", resp)
	}

	cfgs.cfg = models.ImportConfig{ID: "c1"}
	if w := request(r, http.MethodGet, "/api/v1/configs/c1", ""); w.Code != http.StatusOK || cfgs.lastID != "c1" {
		t.Fatalf("show: %d id=%q", w.Code, cfgs.lastID)
	}
}

func TestConfigs_ActionErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{
			name:     "authorization",
			err:      &ckan.ActionError{Action: ckan.ActionImportConfigList, Status: 403, Type: "Authorization Error", Message: "denied"},
			wantCode: http.StatusUnauthorized,
			wantKind: "authorization",
		},
		{
			name:     "action",
			err:      fmt.Errorf("list: %w", &ckan.ActionError{Action: ckan.ActionImportConfigList, Status: 409, Type: "Validation Error"}),
			wantCode: http.StatusBadGateway,
			wantKind: "action",
		},
		{
			name:     "payload",
			err:      &ckan.PayloadError{Action: ckan.ActionImportConfigShow, Field: "other_config", Err: errors.New("bad json")},
			wantCode: http.StatusBadGateway,
			wantKind: "payload",
		},
		{
			name:     "breaker open",
			err:      &ckan.TransportError{Action: ckan.ActionImportConfigList, Err: ckan.ErrCircuitOpen},
			wantCode: http.StatusServiceUnavailable,
			wantKind: "transport",
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Configs: &mockConfigs{err: tc.err}})
			w := request(r, http.MethodGet, "/api/v1/configs", "")
			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d (%s)", tc.wantCode, w.Code, w.Body.String())
			}
			var body map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body["kind"] != tc.wantKind {
				t.Fatalf("kind = %q, want %q", body["kind"], tc.wantKind)
			}
		})
	}
}
