// Package store defines the archive cache: raw build archives keyed by run id.
//
// A run never changes its artifact, so a stored archive is immutable and is
// never invalidated. Retention is left to whoever manages the backing storage.
package store

import (
	"context"
	"fmt"
)

// ArchiveStore persists downloaded build archives.
type ArchiveStore interface {
	// Load returns the archive stored for runID. A missing archive is
	// reported as ok == false with a nil error.
	Load(ctx context.Context, runID int64) (data []byte, ok bool, err error)

	// Store saves the archive for runID. Readers never observe a partially
	// written archive.
	Store(ctx context.Context, runID int64, data []byte) error

	// Close releases the backend
	Close() error
}

// Backend names accepted by Open
const (
	BackendDisk     = "disk"
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend
type Options struct {
	Backend string
	Dir     string // disk and leveldb
	DSN     string // postgres
}

// Open creates the configured backend.
func Open(ctx context.Context, opts Options) (ArchiveStore, error) {
	var (
		s   ArchiveStore
		err error
	)
	switch opts.Backend {
	case "", BackendDisk:
		s, err = NewDiskStore(opts.Dir)
	case BackendMemory:
		s = NewMemoryStore()
	case BackendLevelDB:
		s, err = NewLevelDBStore(opts.Dir)
	case BackendPostgres:
		s, err = NewPostgresStore(ctx, opts.DSN)
	default:
		err = fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
