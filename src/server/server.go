// Package server exposes builds as an update site for the Chunky launcher.
//
// Routes below /pr/{number}/ and /branch/{name}/ serve the release metadata
// and the core library of that build. Every other file, including the
// unchanged libraries of a build, is redirected to the regular update site.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leMaik/chunky-pr-as-update-site/src/archive"
	"github.com/leMaik/chunky-pr-as-update-site/src/logger"
	"github.com/leMaik/chunky-pr-as-update-site/src/pipeline"
	"github.com/leMaik/chunky-pr-as-update-site/src/provider"
)

const (
	cacheHeader     = "X-Chunky-Cache"
	requestIDHeader = "X-Request-Id"

	// coreLibraryPrefix marks the library that a build replaces
	coreLibraryPrefix = "chunky-core"
)

// Service serves the update site.
type Service struct {
	pipeline   *pipeline.Pipeline
	upstream   string
	httpClient *http.Client
	log        logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the client used to load the release template.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithLogger sets the logger; the default is silent.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New creates a Service over p. upstream is the regular update site, without
// a trailing slash.
func New(p *pipeline.Pipeline, upstream string, opts ...Option) *Service {
	s := &Service{
		pipeline:   p,
		upstream:   strings.TrimRight(upstream, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

// route is a parsed request path.
type route struct {
	kind   string // "pr", "branch" or "" for paths outside a build
	id     string
	rest   string // path below the build prefix, starting with "/"
	file   string // set for /lib/{file}
	latest bool
}

func parseRoute(path string) route {
	switch {
	case strings.HasPrefix(path, "/pr/"):
		id, rest, _ := strings.Cut(strings.TrimPrefix(path, "/pr/"), "/")
		return buildRoute("pr", id, "/"+rest)
	case strings.HasPrefix(path, "/branch/"):
		// Branch names may contain slashes, so the known suffixes decide
		// where the name ends.
		name := strings.TrimPrefix(path, "/branch/")
		if n, ok := strings.CutSuffix(name, "/latest.json"); ok {
			return route{kind: "branch", id: n, rest: "/latest.json", latest: true}
		}
		if i := strings.LastIndex(name, "/lib/"); i >= 0 {
			return buildRoute("branch", name[:i], name[i:])
		}
		id, rest, _ := strings.Cut(name, "/")
		return route{kind: "branch", id: id, rest: "/" + rest}
	default:
		return route{rest: path}
	}
}

func buildRoute(kind, id, rest string) route {
	r := route{kind: kind, id: id, rest: rest}
	switch {
	case rest == "/latest.json":
		r.latest = true
	case strings.HasPrefix(rest, "/lib/") && len(rest) > len("/lib/") && !strings.Contains(rest[len("/lib/"):], "/"):
		r.file = rest[len("/lib/"):]
	}
	return r
}

func (s *Service) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rt := parseRoute(r.URL.Path)
	if rt.kind == "" || (!rt.latest && rt.file == "") {
		s.redirect(w, r, rt.rest)
		return
	}
	if rt.file != "" && !strings.HasPrefix(rt.file, coreLibraryPrefix) {
		s.redirect(w, r, rt.rest)
		return
	}

	id, err := provider.ParseIdentifier(rt.kind, rt.id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set(requestIDHeader, requestID)
	ctx := pipeline.WithIdentifier(pipeline.WithRequestID(r.Context(), requestID), id)
	r = r.WithContext(ctx)

	if rt.latest {
		s.serveRelease(w, r, id)
		return
	}
	s.serveLibrary(w, r, id, rt)
}

// serveLibrary streams the core library of the build, or redirects when the
// requested file is a different version of it.
func (s *Service) serveLibrary(w http.ResponseWriter, r *http.Request, id provider.BuildIdentifier, rt route) {
	ctx := r.Context()

	run, err := s.pipeline.LocateRun(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.notModified(w, r, run) {
		return
	}

	entry, fresh, err := s.pipeline.ObtainEntry(ctx, run)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rt.file != entry.FileName && rt.file != pipeline.LibraryName(entry.FileName) {
		s.redirect(w, r, rt.rest)
		return
	}

	setCacheHeader(w.Header(), fresh)
	if _, err := s.pipeline.StreamEntry(ctx, entry, &responseFramer{ResponseWriter: w}); err != nil {
		if errors.Is(err, archive.ErrEntryUnreadable) {
			s.writeError(w, r, err)
			return
		}
		// Headers are out already; the client sees a short body.
		s.log.Error("[Server] Streaming %s for %s failed: %v", entry.FileName, id, err)
	}
}

// notModified answers 304 when the client's copy is not older than the run.
func (s *Service) notModified(w http.ResponseWriter, r *http.Request, run *provider.BuildRun) bool {
	w.Header().Set("Last-Modified", run.CreatedAt.UTC().Format(http.TimeFormat))

	since := ifModifiedSince(r)
	if !pipeline.NotModified(run, since) {
		return false
	}
	w.WriteHeader(http.StatusNotModified)
	return true
}

func ifModifiedSince(r *http.Request) time.Time {
	v := r.Header.Get("If-Modified-Since")
	if v == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Service) redirect(w http.ResponseWriter, r *http.Request, path string) {
	target := s.upstream + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// writeError maps pipeline errors to status codes.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, context.Canceled):
		s.log.Debug("[Server] %s %s cancelled by client", r.Method, r.URL.Path)
		return
	case errors.Is(err, provider.ErrInvalidIdentifier):
		status = http.StatusBadRequest
	case errors.Is(err, provider.ErrBuildNotFound), errors.Is(err, provider.ErrArtifactNotFound):
		status = http.StatusNotFound
	case errors.Is(err, provider.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.log.Error("[Server] %s %s: %v", r.Method, r.URL.Path, err)
	} else {
		s.log.Debug("[Server] %s %s: %v", r.Method, r.URL.Path, err)
	}
	w.Header().Del("Last-Modified")
	http.Error(w, err.Error(), status)
}

func setCacheHeader(h http.Header, fresh bool) {
	if fresh {
		h.Set(cacheHeader, "miss")
	} else {
		h.Set(cacheHeader, "hit")
	}
	ensureExposedHeader(h, cacheHeader)
}

func ensureExposedHeader(h http.Header, name string) {
	const expose = "Access-Control-Expose-Headers"
	cur := h.Values(expose)
	if len(cur) == 0 {
		h.Set(expose, name)
		return
	}

	merged := strings.Join(cur, ",")
	for _, part := range strings.Split(merged, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}
	h.Set(expose, strings.TrimSpace(merged)+", "+name)
}

// responseFramer turns the entry framing into response headers.
type responseFramer struct {
	http.ResponseWriter
}

func (f *responseFramer) SetFraming(fr pipeline.Framing) {
	h := f.Header()
	h.Set("Content-Length", strconv.FormatUint(fr.ContentLength, 10))
	h.Set("Content-Type", fr.ContentType)
	h.Set("Content-Disposition", fr.ContentDisposition)
	f.WriteHeader(http.StatusOK)
}
