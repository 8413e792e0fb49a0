package service

import (
	"context"
	"time"

	"import_panel/internal/logger"
	"import_panel/internal/models"
	"import_panel/internal/panel"
	"import_panel/internal/repository"
)

// Panels mounts and tracks import-status panels, one per operator view.
type Panels interface {
	Mount(ctx context.Context, importConfigID string) (string, error)
	Unmount(id string) error
	Get(id string) (PanelHandle, error)
	List() []PanelInfo
	Shutdown()
}

// PanelHandle is what the HTTP layer may do with one mounted panel.
type PanelHandle interface {
	Snapshot() (panel.Snapshot, error)
	Logs(from int) ([]models.LogLine, int, error)
	Records(typ models.RecordType, page, perPage int) (panel.RecordPage, error)
	Select(jobID string) error
	Stop() error
	Watch(buffer int) (<-chan panel.Update, panel.Snapshot, func(), error)
	ReportViewport(m panel.ScrollMetrics)
}

// Configs reads import configs through the action API.
type Configs interface {
	List(ctx context.Context) ([]models.ImportConfig, error)
	Show(ctx context.Context, id string) (models.ImportConfig, error)
}

// History gives read access to archived jobs.
type History interface {
	List(ctx context.Context, f HistoryFilter) ([]models.JobArchive, error)
	Get(ctx context.Context, jobID string) (models.JobArchive, error)
	Logs(ctx context.Context, jobID, level string) ([]models.LogLine, error)
	Records(ctx context.Context, jobID, typ string) ([]models.FinishedRecord, error)
}

// HistoryFilter narrows archived jobs by config and stop time.
type HistoryFilter struct {
	ConfigID string
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
}

// PanelDefaults are applied to every mounted panel.
type PanelDefaults struct {
	FlushInterval time.Duration
	LogCap        int
	ScrollEpsilon float64
}

// Deps are the collaborators NewService wires together.
type Deps struct {
	Repos    *repository.Repository
	Source   ConfigSource
	Dial     panel.DialFunc
	Defaults PanelDefaults
	Log      *logger.Logger
}

// Service aggregates all sub-services.
type Service struct {
	Panels
	Configs
	History
}

func NewService(d Deps) *Service {
	return &Service{
		Panels:  NewPanelService(d.Dial, d.Repos.Jobs, d.Defaults, d.Log),
		Configs: NewConfigService(d.Source),
		History: NewHistoryService(d.Repos.Jobs, d.Repos.Logs, d.Repos.Records),
	}
}
