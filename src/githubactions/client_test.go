package githubactions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_NewClient(t *testing.T) {
	client := NewClient("fake-token")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %s, want %s", client.baseURL, defaultBaseURL)
	}

	client = NewClient("fake-token", WithBaseURL("https://ghe.example.com/api/v3/"), WithTimeout(5*time.Second))
	if client.baseURL != "https://ghe.example.com/api/v3" {
		t.Errorf("baseURL = %s, want trailing slash trimmed", client.baseURL)
	}
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
	}
}

func TestClient_GetPullRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("unexpected Authorization header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-GitHub-Api-Version") != githubAPIVersion {
			t.Errorf("unexpected API version header: %s", r.Header.Get("X-GitHub-Api-Version"))
		}
		if r.URL.Path != "/repos/chunky-dev/chunky/pulls/1276" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"number": 1276,
			"state": "open",
			"head": {"sha": "abc123", "ref": "feature"}
		}`))
	}))
	defer server.Close()

	client := NewClient("test-token", WithBaseURL(server.URL))

	pr, err := client.GetPullRequest(context.Background(), "chunky-dev", "chunky", 1276)
	if err != nil {
		t.Fatalf("GetPullRequest() error = %v", err)
	}
	if pr.Number != 1276 {
		t.Errorf("Number = %d, want 1276", pr.Number)
	}
	if pr.Head.SHA != "abc123" {
		t.Errorf("Head.SHA = %s, want abc123", pr.Head.SHA)
	}
}

func TestClient_GetPullRequest_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", WithBaseURL(server.URL))

	_, err := client.GetPullRequest(context.Background(), "owner", "repo", 999)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
	if !strings.Contains(err.Error(), "GitHub API error 404: Not Found") {
		t.Errorf("error = %v, want to contain status and message", err)
	}
}

func TestClient_ListWorkflowRuns_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/actions/runs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("event") != "push" {
			t.Errorf("event = %s, want push", q.Get("event"))
		}
		if q.Get("branch") != "feature/x" {
			t.Errorf("branch = %s, want feature/x", q.Get("branch"))
		}
		if q.Has("head_sha") {
			t.Errorf("head_sha should not be sent when empty")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total_count": 2,
			"workflow_runs": [
				{"id": 2, "status": "completed", "conclusion": "success", "created_at": "2024-03-01T10:00:00Z"},
				{"id": 1, "status": "completed", "conclusion": "failure", "created_at": "2024-02-01T10:00:00Z"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient("test-token", WithBaseURL(server.URL))

	runs, err := client.ListWorkflowRuns(context.Background(), "owner", "repo", RunFilter{Event: "push", Branch: "feature/x"})
	if err != nil {
		t.Fatalf("ListWorkflowRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != 2 || !runs[0].CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("runs[0] = %+v, unexpected", runs[0])
	}
}

func TestClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Bad credentials"}`))
	}))
	defer server.Close()

	client := NewClient("invalid-token", WithBaseURL(server.URL))

	_, err := client.ListArtifacts(context.Background(), server.URL+"/repos/o/r/actions/runs/1/artifacts")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false, want true", err)
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"workflow_runs": [`))
	}))
	defer server.Close()

	client := NewClient("test-token", WithBaseURL(server.URL))

	_, err := client.ListWorkflowRuns(context.Background(), "owner", "repo", RunFilter{})
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}
	if IsNotFound(err) {
		t.Error("decode error must not look like a 404")
	}
}

func TestClient_DownloadArchive(t *testing.T) {
	payload := []byte("PK\x03\x04 not really a zip")

	blob := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(payload)
	}))
	defer blob.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r/actions/artifacts/9/zip" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		http.Redirect(w, r, blob.URL+"/blob", http.StatusFound)
	}))
	defer api.Close()

	client := NewClient("test-token", WithBaseURL(api.URL))

	data, err := client.DownloadArchive(context.Background(), api.URL+"/repos/o/r/actions/artifacts/9/zip")
	if err != nil {
		t.Fatalf("DownloadArchive() error = %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("data = %q, want %q", data, payload)
	}
}

func TestClient_DownloadArchive_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient("test-token", WithBaseURL(server.URL))

	_, err := client.DownloadArchive(context.Background(), server.URL+"/zip")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.HasPrefix(err.Error(), "GitHub API error 500") {
		t.Errorf("error = %v, want to start with GitHub API error 500", err)
	}
}
