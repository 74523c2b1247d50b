package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// FileEventLog keeps events and results as two JSON array files, rewritten on
// every append. It suits demos and single-node deployments with modest volume.
type FileEventLog struct {
	mu          sync.Mutex
	eventsPath  string
	resultsPath string
}

func NewFileEventLog(eventsPath, resultsPath string) (*FileEventLog, error) {
	for _, p := range []string{eventsPath, resultsPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create directory for %s: %w", p, err)
			}
		}
	}
	return &FileEventLog{eventsPath: eventsPath, resultsPath: resultsPath}, nil
}

func (f *FileEventLog) SaveEvent(_ context.Context, event models.LoginEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return appendJSON(f.eventsPath, event)
}

func (f *FileEventLog) SaveResult(_ context.Context, result models.RiskAssessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return appendJSON(f.resultsPath, result)
}

func (f *FileEventLog) ListEvents(_ context.Context, limit int) ([]models.LoginEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events, err := readJSON[models.LoginEvent](f.eventsPath)
	if err != nil {
		return nil, err
	}
	return tail(events, limit), nil
}

func (f *FileEventLog) ListResults(_ context.Context, limit int) ([]models.RiskAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results, err := readJSON[models.RiskAssessment](f.resultsPath)
	if err != nil {
		return nil, err
	}
	return tail(results, limit), nil
}

func (f *FileEventLog) Close() error { return nil }

func readJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return items, nil
}

// appendJSON rewrites path through a temp file so readers never see a
// half-written array.
func appendJSON[T any](path string, item T) error {
	items, err := readJSON[T](path)
	if err != nil {
		return err
	}
	items = append(items, item)

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
