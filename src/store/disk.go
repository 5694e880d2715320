package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// archiveMode is the permission of a stored archive: nobody writes it again.
const archiveMode = 0o444

// DiskStore keeps one file per run, <dir>/<runID>.zip.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the cache directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("disk cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Path returns the file that holds the archive of runID.
func (s *DiskStore) Path(runID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(runID, 10)+".zip")
}

// Load reads the archive file of runID.
func (s *DiskStore) Load(ctx context.Context, runID int64) ([]byte, bool, error) {
	data, err := os.ReadFile(s.Path(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached archive %d: %w", runID, err)
	}
	return data, true, nil
}

// Store writes the archive via temp file + rename and marks it read-only.
// Concurrent stores of the same run race harmlessly: the content is
// identical and the last rename wins.
func (s *DiskStore) Store(ctx context.Context, runID int64, data []byte) error {
	finalPath := s.Path(runID)

	tmpFile, err := os.CreateTemp(s.dir, "archive-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp archive file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing archive data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing archive data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp archive file: %w", err)
	}
	if err := os.Chmod(tmpPath, archiveMode); err != nil {
		return fmt.Errorf("marking archive read-only: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming archive file: %w", err)
	}

	success = true
	return nil
}

// Close is a no-op for the disk store.
func (s *DiskStore) Close() error {
	return nil
}
