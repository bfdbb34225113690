// Package recordstore implements the Stream Record Store: a crash-safe,
// one-file-per-record key/value store keyed by record id.
package recordstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/edgestream/streamsup/internal/model"
)

// Store persists Stream Records as one JSON file per record under Dir.
// It holds no in-memory cache and no lock of its own: concurrent save of
// distinct ids is independent, and save of the same id is serialized by the
// caller (the supervisor core), not by the Store.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New returns a Store rooted at dir, creating dir if it does not exist.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save atomically writes record, creating the parent directory if it has
// gone missing since New. The write is flushed before the rename, so a
// completed Save is durable across a process crash.
func (s *Store) Save(record *model.Record) error {
	if record.ID == "" {
		return fmt.Errorf("recordstore: save: record has empty id")
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("recordstore: recreate state directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("recordstore: marshal record %s: %w", record.ID, err)
	}
	if err := renameio.WriteFile(s.path(record.ID), data, 0o640); err != nil {
		return fmt.Errorf("recordstore: write record %s: %w", record.ID, err)
	}
	return nil
}

// FindByID returns the record for id, or (nil, nil) if absent. A file that
// fails to decode is treated as absent and deleted (self-heal).
func (s *Store) FindByID(id string) (*model.Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recordstore: read record %s: %w", id, err)
	}
	var r model.Record
	if err := json.Unmarshal(data, &r); err != nil {
		s.logger.Warn("discarding corrupt record", "id", id, "error", err)
		_ = os.Remove(s.path(id))
		return nil, nil
	}
	return &r, nil
}

// FindAll enumerates every record in the directory, skipping (and removing)
// any file that fails to decode.
func (s *Store) FindAll() ([]*model.Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recordstore: read state directory: %w", err)
	}

	records := make([]*model.Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		r, err := s.FindByID(id)
		if err != nil {
			return nil, err
		}
		if r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

// FindRunning is FindAll filtered to state=RUNNING.
func (s *Store) FindRunning() ([]*model.Record, error) {
	all, err := s.FindAll()
	if err != nil {
		return nil, err
	}
	running := make([]*model.Record, 0, len(all))
	for _, r := range all {
		if r.State == model.StateRunning {
			running = append(running, r)
		}
	}
	return running, nil
}

// Delete removes the record file for id. A missing file is success.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("recordstore: delete record %s: %w", id, err)
	}
	return nil
}

// Clear removes every record file, leaving the directory itself in place.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("recordstore: read state directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("recordstore: clear: remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}
