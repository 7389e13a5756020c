// Package localshort provides the default memory.Provider: one YAML file on
// local disk mapping device id to the latest conversation summary.
//
// The file (default data/.memory.yaml) is shared by every session in the
// process and guarded by the process-wide per-path lock manager.
package localshort

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/voxhive/voxhive/internal/lockfile"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/provider/memory"
	"github.com/voxhive/voxhive/pkg/types"
)

// DefaultPath is the store file used when none is configured.
const DefaultPath = "data/.memory.yaml"

// Compile-time assertion that Store satisfies memory.Provider.
var _ memory.Provider = (*Store)(nil)

// Store implements memory.Provider on a single YAML file.
type Store struct {
	path  string
	model llm.Provider
	locks *lockfile.Manager
}

// New creates a Store writing to path (DefaultPath when empty). model is used
// to summarize transcripts on Save; locks must be the process-wide manager.
func New(path string, model llm.Provider, locks *lockfile.Manager) (*Store, error) {
	if locks == nil {
		return nil, fmt.Errorf("localshort: lock manager must not be nil")
	}
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, model: model, locks: locks}, nil
}

// Save implements memory.Provider.
func (s *Store) Save(ctx context.Context, deviceID string, transcript []types.Message) error {
	if deviceID == "" {
		return fmt.Errorf("localshort: deviceID must not be empty")
	}

	summary, err := memory.Summarize(ctx, s.model, transcript)
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}

	unlock := s.locks.Lock(s.path)
	defer unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[deviceID] = summary
	return s.write(entries)
}

// Query implements memory.Provider.
func (s *Store) Query(ctx context.Context, deviceID, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	unlock := s.locks.Lock(s.path)
	defer unlock()

	entries, err := s.read()
	if err != nil {
		return "", err
	}
	return entries[deviceID], nil
}

// Close implements memory.Provider.
func (s *Store) Close() error { return nil }

// read loads the store file. A missing file is an empty store.
func (s *Store) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localshort: read %q: %w", s.path, err)
	}

	entries := map[string]string{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("localshort: parse %q: %w", s.path, err)
	}
	return entries, nil
}

// write persists the store file, creating parent directories as needed.
func (s *Store) write(entries map[string]string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("localshort: create %q: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("localshort: marshal store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("localshort: write %q: %w", s.path, err)
	}
	return nil
}
