// Package providertest provides an in-memory build source for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/leMaik/chunky-pr-as-update-site/src/provider"
)

// Builds implements provider.Locator and provider.Fetcher over fixed maps
// and counts calls. Set the maps before first use; the error fields may be
// changed at any time.
type Builds struct {
	PullRequests map[int]*provider.BuildRun
	Branches     map[string]*provider.BuildRun
	Archives     map[int64][]byte

	mu          sync.Mutex
	locateErr   error
	fetchErr    error
	locateCalls int
	fetchCalls  int
}

// NewBuilds returns a source with empty maps.
func NewBuilds() *Builds {
	return &Builds{
		PullRequests: make(map[int]*provider.BuildRun),
		Branches:     make(map[string]*provider.BuildRun),
		Archives:     make(map[int64][]byte),
	}
}

// FailLocate makes every following lookup return err.
func (b *Builds) FailLocate(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locateErr = err
}

// FailFetch makes every following download return err.
func (b *Builds) FailFetch(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchErr = err
}

// Calls returns how often runs were resolved and archives fetched.
func (b *Builds) Calls() (locate, fetch int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locateCalls, b.fetchCalls
}

func (b *Builds) ResolvePullRequest(ctx context.Context, number int) (*provider.BuildRun, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locateCalls++
	if b.locateErr != nil {
		return nil, b.locateErr
	}
	if run, ok := b.PullRequests[number]; ok {
		return run, nil
	}
	return nil, provider.ErrBuildNotFound
}

func (b *Builds) ResolveBranch(ctx context.Context, name string) (*provider.BuildRun, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locateCalls++
	if b.locateErr != nil {
		return nil, b.locateErr
	}
	if run, ok := b.Branches[name]; ok {
		return run, nil
	}
	return nil, provider.ErrBuildNotFound
}

func (b *Builds) FetchArchive(ctx context.Context, run *provider.BuildRun) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	if data, ok := b.Archives[run.ID]; ok {
		return data, nil
	}
	return nil, provider.ErrArtifactNotFound
}

// SetArchive replaces the archive of runID; nil removes it.
func (b *Builds) SetArchive(runID int64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if data == nil {
		delete(b.Archives, runID)
		return
	}
	b.Archives[runID] = data
}
