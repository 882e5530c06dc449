package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"padmapper-scraper/models"
)

// JSONStore writes run artifacts as JSON files: one file per listing inside
// a per-run directory, one aggregate array per run, and timestamped raw
// snapshots.
type JSONStore struct {
	dataDir   string
	runDir    string
	timestamp string
}

// NewJSONStore creates the per-run output directory under dataDir.
func NewJSONStore(dataDir string) (*JSONStore, error) {
	ts := time.Now().Format("20060102_150405")
	runDir := filepath.Join(dataDir, "run_"+ts)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create run dir %q: %w", runDir, err)
	}
	return &JSONStore{dataDir: dataDir, runDir: runDir, timestamp: ts}, nil
}

// RunDir returns the directory holding this run's per-listing artifacts.
func (s *JSONStore) RunDir() string {
	return s.runDir
}

// WriteListing persists one listing as listing_<id>.json in the run
// directory.
func (s *JSONStore) WriteListing(l *models.Listing) error {
	path := filepath.Join(s.runDir, fmt.Sprintf("listing_%s.json", l.ID))
	return writeJSON(path, l)
}

// WriteBatch persists the aggregate array for the run.
func (s *JSONStore) WriteBatch(batch []*models.Listing) error {
	path := filepath.Join(s.dataDir, fmt.Sprintf("padmapper_data_%s.json", s.timestamp))
	return writeJSON(path, batch)
}

// WriteSnapshot persists a raw payload under a timestamped name. Snapshots
// are diagnosis artifacts and are not read back by the pipeline.
func (s *JSONStore) WriteSnapshot(name string, payload any) error {
	path := filepath.Join(s.dataDir, fmt.Sprintf("%s_%s.json", name, s.timestamp))
	return writeJSON(path, payload)
}

// ReadBatch reloads the aggregate batch written by this run. Used by
// downstream sinks such as the PostgreSQL mirror.
func (s *JSONStore) ReadBatch() ([]*models.Listing, error) {
	path := filepath.Join(s.dataDir, fmt.Sprintf("padmapper_data_%s.json", s.timestamp))
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", path, err)
	}
	var batch []*models.Listing
	if err := json.Unmarshal(b, &batch); err != nil {
		return nil, fmt.Errorf("storage: decode %q: %w", path, err)
	}
	return batch, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: create %q: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("storage: encode %q: %w", path, err)
	}
	return nil
}
