package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"import_panel/internal/models"
)

// ConfigSource is the part of the action client the service needs.
type ConfigSource interface {
	ListImportConfigs(ctx context.Context) ([]models.ImportConfig, error)
	ShowImportConfig(ctx context.Context, id string) (models.ImportConfig, error)
}

var errEmptyConfigID = errors.New("import config id is required")

type ConfigService struct {
	source ConfigSource
}

func NewConfigService(source ConfigSource) *ConfigService {
	return &ConfigService{source: source}
}

// List returns configs sorted by name, then id.
func (s *ConfigService) List(ctx context.Context) ([]models.ImportConfig, error) {
	cfgs, err := s.source.ListImportConfigs(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cfgs, func(i, j int) bool {
		a, b := strings.ToLower(cfgs[i].Name), strings.ToLower(cfgs[j].Name)
		if a != b {
			return a < b
		}
		return cfgs[i].ID < cfgs[j].ID
	})
	return cfgs, nil
}

func (s *ConfigService) Show(ctx context.Context, id string) (models.ImportConfig, error) {
	if id = strings.TrimSpace(id); id == "" {
		return models.ImportConfig{}, errEmptyConfigID
	}
	return s.source.ShowImportConfig(ctx, id)
}
