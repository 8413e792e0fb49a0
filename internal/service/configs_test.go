package service

import (
	"context"
	"errors"
	"testing"

	"import_panel/internal/models"
)

type fakeSource struct {
	list  []models.ImportConfig
	err   error
	gotID string
}

func (f *fakeSource) ListImportConfigs(ctx context.Context) ([]models.ImportConfig, error) {
	return f.list, f.err
}

func (f *fakeSource) ShowImportConfig(ctx context.Context, id string) (models.ImportConfig, error) {
	f.gotID = id
	return models.ImportConfig{ID: id}, f.err
}

func TestConfigService_ListSorted(t *testing.T) {
	t.Parallel()
	src := &fakeSource{list: []models.ImportConfig{
		{ID: "3", Name: "beta"},
		{ID: "2", Name: "Alpha"},
		{ID: "1", Name: "alpha"},
	}}
	got, err := NewConfigService(src).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].ID != "1" || got[1].ID != "2" || got[2].ID != "3" {
		t.Fatalf("order: %+v", got)
	}
}

func TestConfigService_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	svc := NewConfigService(&fakeSource{err: boom})
	if _, err := svc.List(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("List error not propagated: %v", err)
	}
	if _, err := svc.Show(context.Background(), " "); !errors.Is(err, errEmptyConfigID) {
		t.Fatalf("Show empty id: %v", err)
	}
}

func TestConfigService_ShowTrims(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	if _, err := NewConfigService(src).Show(context.Background(), " cfg-1 "); err != nil || src.gotID != "cfg-1" {
		t.Fatalf("Show: err=%v id=%q", err, src.gotID)
	}
}
