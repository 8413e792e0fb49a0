package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"import_panel/internal/models"
	"import_panel/internal/panel"
	"import_panel/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockPanels struct {
	mountID    string
	mountErr   error
	lastConfig string
	panels     map[string]*mockPanel
	unmounted  []string
}

func (m *mockPanels) Mount(ctx context.Context, importConfigID string) (string, error) {
	m.lastConfig = importConfigID
	return m.mountID, m.mountErr
}

func (m *mockPanels) Unmount(id string) error {
	if _, ok := m.panels[id]; !ok {
		return service.ErrPanelNotFound
	}
	delete(m.panels, id)
	m.unmounted = append(m.unmounted, id)
	return nil
}

func (m *mockPanels) Get(id string) (service.PanelHandle, error) {
	p, ok := m.panels[id]
	if !ok {
		return nil, service.ErrPanelNotFound
	}
	return p, nil
}

func (m *mockPanels) List() []service.PanelInfo {
	out := make([]service.PanelInfo, 0, len(m.panels))
	for id := range m.panels {
		out = append(out, service.PanelInfo{ID: id})
	}
	return out
}

func (m *mockPanels) Shutdown() {}

type mockPanel struct {
	snap    panel.Snapshot
	lines   []models.LogLine
	page    panel.RecordPage
	err     error
	updates chan panel.Update

	mu         sync.Mutex
	lastFrom   int
	lastType   models.RecordType
	lastPage   int
	lastPer    int
	selected   string
	stopCalls  int
	viewports  []panel.ScrollMetrics
	watchCalls int
}

func (m *mockPanel) Snapshot() (panel.Snapshot, error) { return m.snap, m.err }

func (m *mockPanel) Logs(from int) ([]models.LogLine, int, error) {
	m.lastFrom = from
	return m.lines, from + len(m.lines), m.err
}

func (m *mockPanel) Records(typ models.RecordType, page, perPage int) (panel.RecordPage, error) {
	m.lastType, m.lastPage, m.lastPer = typ, page, perPage
	return m.page, m.err
}

func (m *mockPanel) Select(jobID string) error {
	m.selected = jobID
	return m.err
}

func (m *mockPanel) Stop() error {
	m.stopCalls++
	return m.err
}

func (m *mockPanel) Watch(buffer int) (<-chan panel.Update, panel.Snapshot, func(), error) {
	m.mu.Lock()
	m.watchCalls++
	m.mu.Unlock()
	return m.updates, m.snap, func() {}, m.err
}

func (m *mockPanel) ReportViewport(sm panel.ScrollMetrics) {
	m.mu.Lock()
	m.viewports = append(m.viewports, sm)
	m.mu.Unlock()
}

func (m *mockPanel) reported() []panel.ScrollMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]panel.ScrollMetrics(nil), m.viewports...)
}

type mockConfigs struct {
	list   []models.ImportConfig
	cfg    models.ImportConfig
	err    error
	lastID string
}

func (m *mockConfigs) List(ctx context.Context) ([]models.ImportConfig, error) {
	return m.list, m.err
}

func (m *mockConfigs) Show(ctx context.Context, id string) (models.ImportConfig, error) {
	m.lastID = id
	return m.cfg, m.err
}

type mockHistory struct {
	jobs       []models.JobArchive
	job        models.JobArchive
	lines      []models.LogLine
	records    []models.FinishedRecord
	err        error
	lastFilter service.HistoryFilter
	lastLevel  string
	lastType   string
}

func (m *mockHistory) List(ctx context.Context, f service.HistoryFilter) ([]models.JobArchive, error) {
	m.lastFilter = f
	return m.jobs, m.err
}

func (m *mockHistory) Get(ctx context.Context, jobID string) (models.JobArchive, error) {
	return m.job, m.err
}

func (m *mockHistory) Logs(ctx context.Context, jobID, level string) ([]models.LogLine, error) {
	m.lastLevel = level
	return m.lines, m.err
}

func (m *mockHistory) Records(ctx context.Context, jobID, typ string) ([]models.FinishedRecord, error) {
	m.lastType = typ
	return m.records, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil)
	return h.InitRoutes()
}

func withPanel(id string, p *mockPanel) *mockPanels {
	return &mockPanels{panels: map[string]*mockPanel{id: p}}
}

func request(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}
