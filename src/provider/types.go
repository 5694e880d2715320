package provider

import (
	"fmt"
	"time"
)

// IdentifierKind distinguishes the two ways a build can be requested.
type IdentifierKind int

const (
	// PullRequest identifies a build by pull request number
	PullRequest IdentifierKind = iota
	// Branch identifies a build by the branch it was pushed to
	Branch
)

// BuildIdentifier is the logical name of a build, as requested by a client.
// Exactly one of Number (PullRequest) or Name (Branch) is meaningful.
type BuildIdentifier struct {
	Kind   IdentifierKind
	Number int
	Name   string
}

// ForPullRequest returns the identifier for pull request n.
func ForPullRequest(n int) BuildIdentifier {
	return BuildIdentifier{Kind: PullRequest, Number: n}
}

// ForBranch returns the identifier for branch name.
func ForBranch(name string) BuildIdentifier {
	return BuildIdentifier{Kind: Branch, Name: name}
}

// String returns "PR #<n>" or "branch <name>"
func (id BuildIdentifier) String() string {
	if id.Kind == PullRequest {
		return fmt.Sprintf("PR #%d", id.Number)
	}
	return "branch " + id.Name
}

// Run status and conclusion values reported by the build-automation API.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	ConclusionSuccess = "success"
	ConclusionFailure = "failure"
)

// BuildRun is a read-only projection of a remote workflow run.
type BuildRun struct {
	ID            int64
	HeadCommitSHA string
	HeadBranch    string
	CreatedAt     time.Time
	Status        string
	Conclusion    string // empty while the run is not completed
	ArtifactsURL  string
	HTMLURL       string
}

// Succeeded reports whether the run completed successfully. Only such runs
// are ever handed out by a Locator.
func (r *BuildRun) Succeeded() bool {
	return r.Status == StatusCompleted && r.Conclusion == ConclusionSuccess
}
