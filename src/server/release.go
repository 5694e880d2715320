package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leMaik/chunky-pr-as-update-site/src/digest"
	"github.com/leMaik/chunky-pr-as-update-site/src/pipeline"
	"github.com/leMaik/chunky-pr-as-update-site/src/provider"
)

// maxTemplateSize caps the release template read from upstream.
const maxTemplateSize = 1 << 20

// Library is one entry of a release's library list.
type Library struct {
	Name   string `json:"name"`
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256"`
	Size   uint64 `json:"size"`
}

// serveRelease answers latest.json: the upstream release with its core
// library swapped for the build's.
func (s *Service) serveRelease(w http.ResponseWriter, r *http.Request, id provider.BuildIdentifier) {
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
	digests, err := s.pipeline.DigestEntry(ctx, entry, digest.All)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("digesting %s: %w", entry.FileName, err))
		return
	}

	release, err := s.fetchTemplate(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	core := Library{
		Name:   entry.FileName,
		MD5:    digests[digest.MD5],
		SHA256: digests[digest.SHA256],
		Size:   entry.Size,
	}
	patchRelease(release, pipeline.LibraryName(entry.FileName), run, id, core)

	body, err := json.Marshal(release)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encoding release: %w", err))
		return
	}

	setCacheHeader(w.Header(), fresh)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// fetchTemplate loads {upstream}/latest.json. Unknown fields are kept.
func (s *Service) fetchTemplate(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.upstream+"/latest.json", nil)
	if err != nil {
		return nil, fmt.Errorf("creating template request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: release template: %w", provider.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: release template: status %d", provider.ErrUpstream, resp.StatusCode)
	}

	var release map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTemplateSize)).Decode(&release); err != nil {
		return nil, fmt.Errorf("%w: release template: %w", provider.ErrUpstream, err)
	}
	if release == nil {
		return nil, fmt.Errorf("%w: release template is not an object", provider.ErrUpstream)
	}
	return release, nil
}

// patchRelease names the release after the build and replaces every core
// library of the template with core, appending it if there was none.
func patchRelease(release map[string]any, name string, run *provider.BuildRun, id provider.BuildIdentifier, core Library) {
	release["name"] = name
	release["timestamp"] = run.CreatedAt.UTC().Format(time.RFC3339)
	release["notes"] = releaseNotes(run, id)

	libs, _ := release["libraries"].([]any)
	out := make([]any, 0, len(libs)+1)
	replaced := false
	for _, lib := range libs {
		if isCoreLibrary(lib) {
			if !replaced {
				out = append(out, core)
				replaced = true
			}
			continue
		}
		out = append(out, lib)
	}
	if !replaced {
		out = append(out, core)
	}
	release["libraries"] = out
}

func isCoreLibrary(lib any) bool {
	m, ok := lib.(map[string]any)
	if !ok {
		return false
	}
	name, _ := m["name"].(string)
	return strings.HasPrefix(name, coreLibraryPrefix)
}

func releaseNotes(run *provider.BuildRun, id provider.BuildIdentifier) string {
	sha := run.HeadCommitSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	notes := fmt.Sprintf("Unreleased build of %s (commit %s, run %d).", id, sha, run.ID)
	if run.HTMLURL != "" {
		notes += " " + run.HTMLURL
	}
	return notes
}
