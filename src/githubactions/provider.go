package githubactions

import (
	"context"
	"fmt"

	"github.com/leMaik/chunky-pr-as-update-site/src/provider"
)

// Provider implements provider.Locator and provider.Fetcher for GitHub Actions
type Provider struct {
	client       *Client
	owner        string
	repo         string
	artifactName string
}

// NewProvider creates a GitHub Actions provider for owner/repo that serves
// the artifact called artifactName.
func NewProvider(client *Client, owner, repo, artifactName string) *Provider {
	return &Provider{
		client:       client,
		owner:        owner,
		repo:         repo,
		artifactName: artifactName,
	}
}

// Name returns "github"
func (p *Provider) Name() string {
	return "github"
}

// ResolvePullRequest finds the newest successful pull_request run for the
// PR's current head commit.
func (p *Provider) ResolvePullRequest(ctx context.Context, number int) (*provider.BuildRun, error) {
	pr, err := p.client.GetPullRequest(ctx, p.owner, p.repo, number)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("PR #%d: %w", number, provider.ErrBuildNotFound)
		}
		return nil, upstreamError(err)
	}
	if pr.Head.SHA == "" {
		return nil, fmt.Errorf("PR #%d has no head commit: %w", number, provider.ErrBuildNotFound)
	}

	runs, err := p.client.ListWorkflowRuns(ctx, p.owner, p.repo, RunFilter{
		Event:   "pull_request",
		HeadSHA: pr.Head.SHA,
	})
	if err != nil {
		return nil, upstreamError(err)
	}

	run := firstSuccessful(runs)
	if run == nil {
		return nil, fmt.Errorf("PR #%d at %s: no successful run: %w", number, pr.Head.SHA, provider.ErrBuildNotFound)
	}
	return p.toBuildRun(run), nil
}

// ResolveBranch finds the newest successful push run on a branch
func (p *Provider) ResolveBranch(ctx context.Context, name string) (*provider.BuildRun, error) {
	runs, err := p.client.ListWorkflowRuns(ctx, p.owner, p.repo, RunFilter{
		Event:  "push",
		Branch: name,
	})
	if err != nil {
		return nil, upstreamError(err)
	}

	run := firstSuccessful(runs)
	if run == nil {
		return nil, fmt.Errorf("branch %s: no successful run: %w", name, provider.ErrBuildNotFound)
	}
	return p.toBuildRun(run), nil
}

// FetchArchive downloads the zip of the run's expected artifact
func (p *Provider) FetchArchive(ctx context.Context, run *provider.BuildRun) ([]byte, error) {
	artifactsURL := run.ArtifactsURL
	if artifactsURL == "" {
		artifactsURL = p.client.RunArtifactsURL(p.owner, p.repo, run.ID)
	}

	artifacts, err := p.client.ListArtifacts(ctx, artifactsURL)
	if err != nil {
		return nil, upstreamError(err)
	}

	var match *Artifact
	for i := range artifacts {
		if artifacts[i].Name == p.artifactName && !artifacts[i].Expired {
			match = &artifacts[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %d has no artifact %q: %w", run.ID, p.artifactName, provider.ErrArtifactNotFound)
	}

	data, err := p.client.DownloadArchive(ctx, match.ArchiveDownloadURL)
	if err != nil {
		return nil, upstreamError(err)
	}
	return data, nil
}

// firstSuccessful returns the first completed and successful run. Upstream
// lists newest first, so this is the most recent one.
func firstSuccessful(runs []WorkflowRun) *WorkflowRun {
	for i := range runs {
		if runs[i].Status == provider.StatusCompleted && runs[i].Conclusion == provider.ConclusionSuccess {
			return &runs[i]
		}
	}
	return nil
}

func (p *Provider) toBuildRun(run *WorkflowRun) *provider.BuildRun {
	return &provider.BuildRun{
		ID:            run.ID,
		HeadCommitSHA: run.HeadSHA,
		HeadBranch:    run.HeadBranch,
		CreatedAt:     run.CreatedAt,
		Status:        run.Status,
		Conclusion:    run.Conclusion,
		ArtifactsURL:  run.ArtifactsURL,
		HTMLURL:       run.HTMLURL,
	}
}

// upstreamError marks err as a failure to reach the build-automation API.
func upstreamError(err error) error {
	switch {
	case IsUnauthorized(err):
		return fmt.Errorf("%w: %w: %w", provider.ErrUpstream, provider.ErrAuthFailed, err)
	case IsRateLimited(err):
		return fmt.Errorf("%w: %w: %w", provider.ErrUpstream, provider.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", provider.ErrUpstream, err)
}
