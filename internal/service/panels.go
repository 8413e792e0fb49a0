package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"import_panel/internal/logger"
	"import_panel/internal/models"
	"import_panel/internal/panel"
	"import_panel/internal/repository"

	"github.com/google/uuid"
)

const archiveTimeout = 10 * time.Second

var ErrPanelNotFound = errors.New("panel not found")

// PanelInfo lists a mounted panel.
type PanelInfo struct {
	ID             string    `json:"id"`
	ImportConfigID string    `json:"import_config_id"`
	MountedAt      time.Time `json:"mounted_at"`
}

type mountedPanel struct {
	*panel.Panel
	info PanelInfo
	vp   *panel.RemoteViewport
}

func (m *mountedPanel) ReportViewport(sm panel.ScrollMetrics) { m.vp.Report(sm) }

// PanelService owns every mounted panel. Each panel has its own channel.
type PanelService struct {
	dial     panel.DialFunc
	jobs     repository.JobRepo
	defaults PanelDefaults
	log      *logger.Logger

	mu     sync.RWMutex
	panels map[string]*mountedPanel
	// archives in flight; Shutdown waits for them.
	wg sync.WaitGroup
}

func NewPanelService(dial panel.DialFunc, jobs repository.JobRepo, defaults PanelDefaults, log *logger.Logger) *PanelService {
	return &PanelService{
		dial:     dial,
		jobs:     jobs,
		defaults: defaults,
		log:      logger.OrNop(log),
		panels:   make(map[string]*mountedPanel),
	}
}

// Mount opens a panel for importConfigID and returns its id. A failed
// channel dial still mounts the panel, in the disconnected state.
func (s *PanelService) Mount(ctx context.Context, importConfigID string) (string, error) {
	if importConfigID = strings.TrimSpace(importConfigID); importConfigID == "" {
		return "", errEmptyConfigID
	}
	id := uuid.NewString()
	vp := &panel.RemoteViewport{}
	p, err := panel.Mount(ctx, panel.Options{
		ImportConfigID: importConfigID,
		Dial:           s.dial,
		FlushInterval:  s.defaults.FlushInterval,
		LogCap:         s.defaults.LogCap,
		ScrollEpsilon:  s.defaults.ScrollEpsilon,
		Viewport:       vp,
		OnJobStopped:   s.archive,
		Log:            s.log.With("panel_id", id),
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.panels[id] = &mountedPanel{
		Panel: p,
		vp:    vp,
		info:  PanelInfo{ID: id, ImportConfigID: importConfigID, MountedAt: time.Now().UTC()},
	}
	s.mu.Unlock()
	s.log.Infow("panel_mounted", "panel_id", id, "import_config_id", importConfigID)
	return id, nil
}

// Unmount closes and forgets a panel.
func (s *PanelService) Unmount(id string) error {
	s.mu.Lock()
	mp, ok := s.panels[id]
	delete(s.panels, id)
	s.mu.Unlock()
	if !ok {
		return ErrPanelNotFound
	}
	s.log.Infow("panel_unmounted", "panel_id", id)
	return mp.Close()
}

func (s *PanelService) Get(id string) (PanelHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mp, ok := s.panels[id]
	if !ok {
		return nil, ErrPanelNotFound
	}
	return mp, nil
}

// List returns mounted panels, oldest first.
func (s *PanelService) List() []PanelInfo {
	s.mu.RLock()
	out := make([]PanelInfo, 0, len(s.panels))
	for _, mp := range s.panels {
		out = append(out, mp.info)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MountedAt.Equal(out[j].MountedAt) {
			return out[i].MountedAt.Before(out[j].MountedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Shutdown unmounts every panel and waits for pending archives.
func (s *PanelService) Shutdown() {
	s.mu.Lock()
	panels := s.panels
	s.panels = make(map[string]*mountedPanel)
	s.mu.Unlock()
	for id, mp := range panels {
		if err := mp.Close(); err != nil {
			s.log.Warnw("panel_close_failed", "panel_id", id, "err", err)
		}
	}
	s.wg.Wait()
}

// archive runs on the panel goroutine; the write happens off it.
func (s *PanelService) archive(st panel.StoppedJob) {
	if s.jobs == nil {
		return
	}
	a := models.JobArchive{
		JobID:          st.Job.ID,
		ImportConfigID: st.Job.ImportConfigID,
		RunBy:          st.Job.RunBy,
		RunAt:          st.Job.RunAt,
		StoppedAt:      st.StoppedAt,
		Progress:       st.Progress,
		LogCount:       len(st.Logs),
		RecordCount:    len(st.Finished),
		Logs:           st.Logs,
		Finished:       st.Finished,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.jobs.ArchiveJob(ctx, a); err != nil {
			s.log.Errorw("job_archive_failed", "job_id", a.JobID, "err", err)
			return
		}
		s.log.Infow("job_archived", "job_id", a.JobID, "logs", a.LogCount, "records", a.RecordCount)
	}()
}
