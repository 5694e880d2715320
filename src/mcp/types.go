// Package mcp provides the MCP server that lets assistants look up builds.
package mcp

// BuildInfo describes a resolved run.
type BuildInfo struct {
	Identifier string `json:"identifier"`
	RunID      int64  `json:"run_id"`
	HeadSHA    string `json:"head_sha"`
	HeadBranch string `json:"head_branch,omitempty"`
	CreatedAt  string `json:"created_at"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	URL        string `json:"url,omitempty"`
}

// ArtifactInfo describes the core library of a build.
type ArtifactInfo struct {
	Build    BuildInfo `json:"build"`
	Name     string    `json:"name"`
	FileName string    `json:"file_name"`
	Size     uint64    `json:"size"`
	MD5      string    `json:"md5,omitempty"`
	SHA256   string    `json:"sha256,omitempty"`
	// Cached is true when the archive was already in the cache.
	Cached bool `json:"cached"`
}
