package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

// MetaStore persists the latest export metadata as a single JSON file.
// Last write wins; no history is retained.
type MetaStore struct {
	path   string
	logger *zap.Logger
}

// NewMetaStore builds a store writing to path.
func NewMetaStore(path string, logger *zap.Logger) *MetaStore {
	return &MetaStore{path: path, logger: logger}
}

// Write overwrites the stored metadata. Best-effort by contract: callers
// treat a returned error as advisory and must not fail their request on it.
func (s *MetaStore) Write(meta domain.ExportMetadata) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Read returns the stored metadata, or ok=false when no export has run yet
// or the file is unreadable or corrupt. Absence is not an error.
func (s *MetaStore) Read() (domain.ExportMetadata, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read export metadata", zap.Error(err))
		}
		return domain.ExportMetadata{}, false
	}
	var meta domain.ExportMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("export metadata corrupt", zap.Error(err))
		return domain.ExportMetadata{}, false
	}
	if meta.Timestamp == "" && meta.Filename == "" {
		return domain.ExportMetadata{}, false
	}
	return meta, true
}
