package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Locator maps a logical build identifier to the most recent completed and
// successful run. A missing build is reported as ErrBuildNotFound; failing to
// ask the upstream API is reported as ErrUpstream.
type Locator interface {
	// ResolvePullRequest finds the newest successful run for a pull request's head commit
	ResolvePullRequest(ctx context.Context, number int) (*BuildRun, error)

	// ResolveBranch finds the newest successful push run on a branch
	ResolveBranch(ctx context.Context, name string) (*BuildRun, error)
}

// Fetcher downloads the archive of the expected artifact attached to a run.
type Fetcher interface {
	// FetchArchive returns the complete archive bytes, ErrArtifactNotFound if
	// the run has no artifact with the expected name, or an ErrUpstream error.
	FetchArchive(ctx context.Context, run *BuildRun) ([]byte, error)
}

// LocateRun dispatches an identifier to the matching Locator method.
func LocateRun(ctx context.Context, locator Locator, id BuildIdentifier) (*BuildRun, error) {
	switch id.Kind {
	case PullRequest:
		return locator.ResolvePullRequest(ctx, id.Number)
	case Branch:
		return locator.ResolveBranch(ctx, id.Name)
	default:
		return nil, fmt.Errorf("%w: unknown identifier kind %d", ErrInvalidIdentifier, id.Kind)
	}
}

// forbiddenRefChars may not appear anywhere in a git ref name.
const forbiddenRefChars = " ~^:?*[\\"

// ParsePullRequest validates a pull request number taken from a request path.
func ParsePullRequest(raw string) (BuildIdentifier, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return BuildIdentifier{}, fmt.Errorf("%w: pull request %q", ErrInvalidIdentifier, raw)
	}
	return ForPullRequest(n), nil
}

// ParseBranch validates a branch name taken from a request path against
// git's ref name rules (git check-ref-format). Any other character,
// including non-ASCII ones, is accepted.
func ParseBranch(raw string) (BuildIdentifier, error) {
	if !validRefName(raw) {
		return BuildIdentifier{}, fmt.Errorf("%w: branch %q", ErrInvalidIdentifier, raw)
	}
	return ForBranch(raw), nil
}

func validRefName(name string) bool {
	if name == "" || name == "@" {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return false
	}
	if strings.ContainsAny(name, forbiddenRefChars) {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".lock") {
			return false
		}
	}
	return true
}

// ParseIdentifier builds an identifier from the kind segment of a path
// ("pr" or "branch") and its value.
func ParseIdentifier(kind, value string) (BuildIdentifier, error) {
	switch kind {
	case "pr":
		return ParsePullRequest(value)
	case "branch":
		return ParseBranch(value)
	default:
		return BuildIdentifier{}, fmt.Errorf("%w: kind %q", ErrInvalidIdentifier, kind)
	}
}

// IdentifierFrom picks a pull request number or a branch name, as given by
// command flags or tool arguments. Exactly one of them must be set.
func IdentifierFrom(pr int, branch string) (BuildIdentifier, error) {
	switch {
	case pr != 0 && branch != "":
		return BuildIdentifier{}, fmt.Errorf("%w: give either a pull request or a branch, not both", ErrInvalidIdentifier)
	case pr != 0:
		return ParsePullRequest(strconv.Itoa(pr))
	case branch != "":
		return ParseBranch(branch)
	default:
		return BuildIdentifier{}, fmt.Errorf("%w: a pull request or a branch is required", ErrInvalidIdentifier)
	}
}
