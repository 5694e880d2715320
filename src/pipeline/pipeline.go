// Package pipeline resolves a build identifier to the packaged library of its
// newest successful run: locate the run, obtain its archive through the
// cache, then digest or stream the first entry.
// It is shared by the HTTP server, the MCP server and the CLI.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leMaik/chunky-pr-as-update-site/src/archive"
	"github.com/leMaik/chunky-pr-as-update-site/src/broker"
	"github.com/leMaik/chunky-pr-as-update-site/src/contracts"
	"github.com/leMaik/chunky-pr-as-update-site/src/digest"
	"github.com/leMaik/chunky-pr-as-update-site/src/logger"
	"github.com/leMaik/chunky-pr-as-update-site/src/provider"
	"github.com/leMaik/chunky-pr-as-update-site/src/store"
	"github.com/leMaik/chunky-pr-as-update-site/src/telemetry"
)

// publishTimeout bounds an event publish; it outlives the request context.
const publishTimeout = 5 * time.Second

// Pipeline holds the collaborators of one update site.
type Pipeline struct {
	locator provider.Locator
	fetcher provider.Fetcher
	cache   store.ArchiveStore
	events  broker.Broker
	topic   string
	metrics *telemetry.Metrics
	log     logger.Logger
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithEvents publishes an ArchiveFetched event to topic for every download.
func WithEvents(b broker.Broker, topic string) Option {
	return func(p *Pipeline) {
		p.events = b
		p.topic = topic
	}
}

// WithMetrics records cache and transfer counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger; the default is silent.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a pipeline over the given locator, fetcher and archive cache.
func New(locator provider.Locator, fetcher provider.Fetcher, cache store.ArchiveStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		locator: locator,
		fetcher: fetcher,
		cache:   cache,
		log:     logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LocateRun finds the newest successful run for id.
func (p *Pipeline) LocateRun(ctx context.Context, id provider.BuildIdentifier) (*provider.BuildRun, error) {
	run, err := provider.LocateRun(ctx, p.locator, id)
	if err != nil {
		return nil, err
	}
	p.log.Debug("[Pipeline] %s resolved to run %d (%s)", id, run.ID, run.HeadCommitSHA)
	return run, nil
}

// NotModified reports whether a client holding a copy from since is up to
// date. The run's creation time is compared at second precision, the
// resolution of HTTP dates. A zero since never matches.
func NotModified(run *provider.BuildRun, since time.Time) bool {
	if since.IsZero() {
		return false
	}
	return !run.CreatedAt.Truncate(time.Second).After(since.Truncate(time.Second))
}

// ObtainEntry returns the first entry of the run's archive, loading the
// archive from the cache or downloading it. freshlyFetched is true when the
// archive came from upstream during this call.
//
// Failing to read or write the cache never fails the call: a read error is
// treated as a miss and a write error only logged. Archives that do not
// parse are returned as an error and never cached.
func (p *Pipeline) ObtainEntry(ctx context.Context, run *provider.BuildRun) (*archive.Entry, bool, error) {
	data, ok, err := p.cache.Load(ctx, run.ID)
	if err != nil {
		p.log.Error("[Pipeline] Cache read for run %d failed, fetching instead: %v", run.ID, err)
		ok = false
	}
	if ok {
		p.metrics.CacheHit(ctx)
		_, entry, err := archive.OpenFirstEntry(data)
		if err != nil {
			return nil, false, fmt.Errorf("cached archive of run %d: %w", run.ID, err)
		}
		return entry, false, nil
	}

	p.metrics.CacheMiss(ctx)
	data, err = p.fetcher.FetchArchive(ctx, run)
	if err != nil {
		p.metrics.FetchFailed(ctx)
		return nil, false, err
	}
	p.metrics.ArchiveFetched(ctx)

	_, entry, err := archive.OpenFirstEntry(data)
	if err != nil {
		return nil, true, fmt.Errorf("archive of run %d: %w", run.ID, err)
	}

	// a client that hangs up must not throw away a completed download
	cached := true
	if err := p.cache.Store(context.WithoutCancel(ctx), run.ID, data); err != nil {
		p.log.Error("[Pipeline] Caching archive of run %d failed: %v", run.ID, err)
		cached = false
	}

	p.publishFetched(ctx, run, entry, len(data), cached)
	p.log.Info("[Pipeline] Fetched archive of run %d (%d bytes, entry %s)", run.ID, len(data), entry.FileName)
	return entry, true, nil
}

// DigestEntry computes the requested digests over the entry's content.
func (p *Pipeline) DigestEntry(ctx context.Context, entry *archive.Entry, algorithms []digest.Algorithm) (map[digest.Algorithm]string, error) {
	return digest.Compute(ctx, entry, algorithms)
}

func (p *Pipeline) publishFetched(ctx context.Context, run *provider.BuildRun, entry *archive.Entry, size int, cached bool) {
	if p.events == nil {
		return
	}

	event := contracts.ArchiveFetched{
		RequestID:    RequestID(ctx),
		RunID:        run.ID,
		Identifier:   identifierFrom(ctx),
		EntryName:    entry.FileName,
		ArchiveBytes: size,
		Cached:       cached,
		FetchedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("[Pipeline] Failed to marshal fetch event: %v", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.events.Publish(pubCtx, p.topic, strconv.FormatInt(run.ID, 10), data); err != nil {
		p.log.Error("[Pipeline] Failed to publish fetch event for run %d: %v", run.ID, err)
	}
}

// Artifact is the resolved library of one build.
type Artifact struct {
	Identifier provider.BuildIdentifier
	Run        *provider.BuildRun
	// NotModified is set when the caller's copy is current; the fields
	// below are then left empty.
	NotModified bool

	FileName       string
	Name           string
	Size           uint64
	Digests        map[digest.Algorithm]string
	FreshlyFetched bool
}

// Describe resolves id and digests its entry with algorithms, or every
// supported algorithm when none are given, unless the run is not newer
// than since.
func (p *Pipeline) Describe(ctx context.Context, id provider.BuildIdentifier, since time.Time, algorithms ...digest.Algorithm) (*Artifact, error) {
	if len(algorithms) == 0 {
		algorithms = digest.All
	}

	ctx = WithIdentifier(ctx, id)

	run, err := p.LocateRun(ctx, id)
	if err != nil {
		return nil, err
	}

	a := &Artifact{Identifier: id, Run: run}
	if NotModified(run, since) {
		a.NotModified = true
		return a, nil
	}

	entry, fresh, err := p.ObtainEntry(ctx, run)
	if err != nil {
		return nil, err
	}

	digests, err := p.DigestEntry(ctx, entry, algorithms)
	if err != nil {
		return nil, fmt.Errorf("digesting %s: %w", entry.FileName, err)
	}

	a.FileName = entry.FileName
	a.Name = LibraryName(entry.FileName)
	a.Size = entry.Size
	a.Digests = digests
	a.FreshlyFetched = fresh
	return a, nil
}

// LibraryName strips the ".jar" extension from an entry file name.
func LibraryName(fileName string) string {
	return strings.TrimSuffix(fileName, ".jar")
}

type contextKey int

const (
	requestIDKey contextKey = iota
	identifierKey
)

// WithRequestID tags ctx with the id used for logs and events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id of ctx, or a new random one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// WithIdentifier records which build a request asked for.
func WithIdentifier(ctx context.Context, id provider.BuildIdentifier) context.Context {
	return context.WithValue(ctx, identifierKey, id.String())
}

func identifierFrom(ctx context.Context) string {
	s, _ := ctx.Value(identifierKey).(string)
	return s
}
