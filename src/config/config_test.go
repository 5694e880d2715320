package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		FileEnv, "GITHUB_TOKEN", "CHUNKY_GITHUB_OWNER", "CHUNKY_GITHUB_REPO",
		"CHUNKY_ARTIFACT_NAME", "GITHUB_API_URL", "CHUNKY_GITHUB_TIMEOUT", "PORT",
		"CHUNKY_UPSTREAM", "CHUNKY_CACHE_BACKEND", "CHUNKY_CACHE_DIR",
		"CHUNKY_CACHE_DSN", "REDPANDA_BROKERS", "CHUNKY_BROKER_TOPIC",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunky.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		clearEnv(t)
		testToken := "test-token-12345"
		t.Setenv("GITHUB_TOKEN", testToken)

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() unexpected error: %v", err)
		}

		if cfg.GitHub.Token != testToken {
			t.Errorf("LoadFromEnv() token = %v, want %v", cfg.GitHub.Token, testToken)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		clearEnv(t)

		_, err := LoadFromEnv()
		if err == nil {
			t.Fatal("LoadFromEnv() expected error for missing token, got nil")
		}
		if !strings.Contains(err.Error(), "github.token") {
			t.Errorf("error %q should name github.token", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "tok")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.GitHub.Owner != "chunky-dev" || cfg.GitHub.Repo != "chunky" {
		t.Errorf("repository = %s/%s, want chunky-dev/chunky", cfg.GitHub.Owner, cfg.GitHub.Repo)
	}
	if cfg.GitHub.Artifact != "Chunky Core" {
		t.Errorf("artifact = %q, want %q", cfg.GitHub.Artifact, "Chunky Core")
	}
	if cfg.GitHub.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.GitHub.Timeout)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.Upstream != "https://chunkyupdate.lemaik.de" {
		t.Errorf("upstream = %s", cfg.Server.Upstream)
	}
	if cfg.Cache.Backend != "disk" || cfg.Cache.Dir != "./cache" {
		t.Errorf("cache = %s %s, want disk ./cache", cfg.Cache.Backend, cfg.Cache.Dir)
	}
	if len(cfg.Broker.Brokers) != 0 {
		t.Errorf("brokers = %v, want none", cfg.Broker.Brokers)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
github:
  token: from-file
  repo: chunky-fork
  timeout: 5s
server:
  port: 8080
  upstream: https://updates.example.com/
cache:
  backend: leveldb
  dir: /var/cache/chunky
broker:
  brokers: [localhost:19092]
log:
  level: debug
`)
	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("PORT", "9090")
	t.Setenv("REDPANDA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.GitHub.Token != "from-env" {
		t.Errorf("token = %s, env should win over file", cfg.GitHub.Token)
	}
	if cfg.GitHub.Repo != "chunky-fork" {
		t.Errorf("repo = %s, want chunky-fork", cfg.GitHub.Repo)
	}
	if cfg.GitHub.Owner != "chunky-dev" {
		t.Errorf("owner = %s, default should survive a partial file", cfg.GitHub.Owner)
	}
	if cfg.GitHub.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.GitHub.Timeout)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Upstream != "https://updates.example.com" {
		t.Errorf("upstream = %s, trailing slash should be trimmed", cfg.Server.Upstream)
	}
	if cfg.Cache.Backend != "leveldb" || cfg.Cache.Dir != "/var/cache/chunky" {
		t.Errorf("cache = %s %s", cfg.Cache.Backend, cfg.Cache.Dir)
	}
	if len(cfg.Broker.Brokers) != 2 || cfg.Broker.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v, want [a:9092 b:9092]", cfg.Broker.Brokers)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoad_FileFromEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, writeFile(t, "github:\n  token: file-token\n"))

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() unexpected error: %v", err)
	}
	if cfg.GitHub.Token != "file-token" {
		t.Errorf("token = %s, want file-token", cfg.GitHub.Token)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		wantKey string
	}{
		{"bad port env", map[string]string{"PORT": "http"}, "", "PORT"},
		{"port out of range", map[string]string{"PORT": "70000"}, "", "server.port"},
		{"bad timeout", map[string]string{"CHUNKY_GITHUB_TIMEOUT": "soon"}, "", "CHUNKY_GITHUB_TIMEOUT"},
		{"relative upstream", map[string]string{"CHUNKY_UPSTREAM": "/updates"}, "", "server.upstream"},
		{"unknown backend", map[string]string{"CHUNKY_CACHE_BACKEND": "redis"}, "", "cache.backend"},
		{"postgres without dsn", map[string]string{"CHUNKY_CACHE_BACKEND": "postgres"}, "", "cache.dsn"},
		{"unknown log level", map[string]string{"LOG_LEVEL": "loud"}, "", "log.level"},
		{"bad yaml", nil, "github: [", "parsing config file"},
		{"empty topic", nil, "broker:\n  brokers: [x:1]\n  topic: \"\"\n", "broker.topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GITHUB_TOKEN", "tok")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("error %q should mention %q", err, tt.wantKey)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "tok")

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}
