package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leMaik/chunky-pr-as-update-site/src/digest"
	"github.com/leMaik/chunky-pr-as-update-site/src/pipeline"
	"github.com/leMaik/chunky-pr-as-update-site/src/provider"
)

// Server is the MCP server for the update site.
type Server struct {
	mcpServer *server.MCPServer
	pipeline  *pipeline.Pipeline
}

// NewServer creates a new MCP server over p.
func NewServer(p *pipeline.Pipeline, version string) *Server {
	s := server.NewMCPServer(
		"chunky-pr",
		version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		pipeline:  p,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	resolveTool := mcp.NewTool("resolve_build",
		mcp.WithDescription("Find the newest successful CI run of a Chunky pull request or branch. Returns the run id, head commit, creation time and status without downloading anything."),
		mcp.WithNumber("pr",
			mcp.Description("Pull request number"),
		),
		mcp.WithString("branch",
			mcp.Description("Branch name, used when pr is not given"),
		),
	)

	describeTool := mcp.NewTool("describe_artifact",
		mcp.WithDescription("Describe the Chunky core library built for a pull request or branch: file name, size, MD5 and SHA-256. Downloads the build archive on first use."),
		mcp.WithNumber("pr",
			mcp.Description("Pull request number"),
		),
		mcp.WithString("branch",
			mcp.Description("Branch name, used when pr is not given"),
		),
		mcp.WithArray("algorithms",
			mcp.Description("Digests to compute: md5, sha256. Defaults to both."),
			mcp.WithStringItems(),
		),
	)

	s.mcpServer.AddTool(resolveTool, s.handleResolveBuild)
	s.mcpServer.AddTool(describeTool, s.handleDescribeArtifact)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleResolveBuild handles the resolve_build tool call.
func (s *Server) handleResolveBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := identifierFrom(request)
	if err != nil {
		return mcp.NewToolResultError(provider.WrapError(err).Error()), nil
	}

	run, err := s.pipeline.LocateRun(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolving %s failed: %v", id, provider.WrapError(err))), nil
	}

	return jsonResult(buildInfo(id, run))
}

// handleDescribeArtifact handles the describe_artifact tool call.
func (s *Server) handleDescribeArtifact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := identifierFrom(request)
	if err != nil {
		return mcp.NewToolResultError(provider.WrapError(err).Error()), nil
	}

	algorithms, err := digest.ParseAlgorithms(request.GetStringSlice("algorithms", nil))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	a, err := s.pipeline.Describe(ctx, id, time.Time{}, algorithms...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("describing %s failed: %v", id, provider.WrapError(err))), nil
	}

	return jsonResult(ArtifactInfo{
		Build:    buildInfo(id, a.Run),
		Name:     a.Name,
		FileName: a.FileName,
		Size:     a.Size,
		MD5:      a.Digests[digest.MD5],
		SHA256:   a.Digests[digest.SHA256],
		Cached:   !a.FreshlyFetched,
	})
}

func identifierFrom(request mcp.CallToolRequest) (provider.BuildIdentifier, error) {
	return provider.IdentifierFrom(request.GetInt("pr", 0), request.GetString("branch", ""))
}

func buildInfo(id provider.BuildIdentifier, run *provider.BuildRun) BuildInfo {
	return BuildInfo{
		Identifier: id.String(),
		RunID:      run.ID,
		HeadSHA:    run.HeadCommitSHA,
		HeadBranch: run.HeadBranch,
		CreatedAt:  run.CreatedAt.UTC().Format(time.RFC3339),
		Status:     run.Status,
		Conclusion: run.Conclusion,
		URL:        run.HTMLURL,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
