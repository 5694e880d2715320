package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBStore keeps archives in a LevelDB database under key "a:<runID>".
// A single Put is atomic, so readers see either nothing or the whole archive.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (or creates) the database at path.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	if path == "" {
		return nil, fmt.Errorf("leveldb cache path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb cache: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func archiveKey(runID int64) []byte {
	return []byte("a:" + strconv.FormatInt(runID, 10))
}

// Load returns the archive of runID.
func (s *LevelDBStore) Load(ctx context.Context, runID int64) ([]byte, bool, error) {
	data, err := s.db.Get(archiveKey(runID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached archive %d: %w", runID, err)
	}
	return data, true, nil
}

// Store puts the archive of runID.
func (s *LevelDBStore) Store(ctx context.Context, runID int64, data []byte) error {
	if err := s.db.Put(archiveKey(runID), data, nil); err != nil {
		return fmt.Errorf("writing cached archive %d: %w", runID, err)
	}
	return nil
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
