// Package file persists checkpoints as two JSON documents in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing/es"
)

// Config configures a file Store.
type Config struct {
	// Dir is the directory holding jobs.json and jobs-failed.json (default: ".").
	Dir string

	// Logger is for observability (optional).
	Logger es.Logger
}

// Store writes jobs.json and jobs-failed.json on every Persist.
// Each document is written to a temporary file and renamed into place, so a
// reader never observes a partially written document.
type Store struct {
	config Config
}

var _ store.CheckpointStore = (*Store)(nil)

// New creates the checkpoint directory if needed and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Store{config: cfg}, nil
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string {
	return s.config.Dir
}

// Persist overwrites both documents with the current state.
func (s *Store) Persist(ctx context.Context, state *replay.RunState) error {
	snapshot, err := store.Encode(state)
	if err != nil {
		return err
	}

	if err := s.write(store.DocumentJobs, snapshot.Jobs); err != nil {
		return err
	}
	if err := s.write(store.DocumentFailed, snapshot.Failed); err != nil {
		return err
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "checkpoint written",
			"dir", s.config.Dir,
			"completed", state.Completed(),
			"failed", len(state.Failed))
	}

	return nil
}

// Load reads a document back from the checkpoint directory.
// Returns store.ErrDocumentNotFound if the document does not exist.
func (s *Store) Load(ctx context.Context, document string) ([]byte, error) {
	if document != store.DocumentJobs && document != store.DocumentFailed {
		return nil, fmt.Errorf("%w: %s", store.ErrDocumentNotFound, document)
	}

	data, err := os.ReadFile(filepath.Join(s.config.Dir, document))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", store.ErrDocumentNotFound, document)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", document, err)
	}

	return data, nil
}

func (s *Store) write(document string, data []byte) error {
	path := filepath.Join(s.config.Dir, document)

	tmp, err := os.CreateTemp(s.config.Dir, document+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", document, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", document, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", document, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", document, err)
	}

	return nil
}
