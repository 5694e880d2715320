// Package config provides configuration management for the update site.
//
// Values come from built-in defaults, then an optional YAML file, then
// environment variables; later sources win.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at the YAML config file.
const FileEnv = "CHUNKY_CONFIG"

// Config holds the application configuration.
type Config struct {
	GitHub struct {
		// Token is the bearer token for the GitHub API. Required.
		Token    string        `yaml:"token"`
		Owner    string        `yaml:"owner"`
		Repo     string        `yaml:"repo"`
		Artifact string        `yaml:"artifact"`
		APIURL   string        `yaml:"api_url"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"github"`

	Server struct {
		Port int `yaml:"port"`
		// Upstream is the regular update site that everything not served
		// from a build is redirected to.
		Upstream string `yaml:"upstream"`
	} `yaml:"server"`

	Cache struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
		DSN     string `yaml:"dsn"`
	} `yaml:"cache"`

	Broker struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"broker"`

	Telemetry struct {
		Endpoint string `yaml:"endpoint"`
		Insecure bool   `yaml:"insecure"`
	} `yaml:"telemetry"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	cfg.GitHub.Owner = "chunky-dev"
	cfg.GitHub.Repo = "chunky"
	cfg.GitHub.Artifact = "Chunky Core"
	cfg.GitHub.APIURL = "https://api.github.com"
	cfg.GitHub.Timeout = 30 * time.Second
	cfg.Server.Port = 3000
	cfg.Server.Upstream = "https://chunkyupdate.lemaik.de"
	cfg.Cache.Backend = "disk"
	cfg.Cache.Dir = "./cache"
	cfg.Broker.Topic = "chunky.archives.fetched"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the YAML file at path (skipped when empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables and the
// file named by CHUNKY_CONFIG, if any.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(FileEnv))
}

func applyEnv(cfg *Config) error {
	envStr("GITHUB_TOKEN", &cfg.GitHub.Token)
	envStr("CHUNKY_GITHUB_OWNER", &cfg.GitHub.Owner)
	envStr("CHUNKY_GITHUB_REPO", &cfg.GitHub.Repo)
	envStr("CHUNKY_ARTIFACT_NAME", &cfg.GitHub.Artifact)
	envStr("GITHUB_API_URL", &cfg.GitHub.APIURL)
	if err := envDuration("CHUNKY_GITHUB_TIMEOUT", &cfg.GitHub.Timeout); err != nil {
		return err
	}
	if err := envInt("PORT", &cfg.Server.Port); err != nil {
		return err
	}
	envStr("CHUNKY_UPSTREAM", &cfg.Server.Upstream)
	envStr("CHUNKY_CACHE_BACKEND", &cfg.Cache.Backend)
	envStr("CHUNKY_CACHE_DIR", &cfg.Cache.Dir)
	envStr("CHUNKY_CACHE_DSN", &cfg.Cache.DSN)
	if v := os.Getenv("REDPANDA_BROKERS"); v != "" {
		cfg.Broker.Brokers = splitList(v)
	}
	envStr("CHUNKY_BROKER_TOPIC", &cfg.Broker.Topic)
	envStr("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTEL_EXPORTER_OTLP_INSECURE: %w", err)
		}
		cfg.Telemetry.Insecure = b
	}
	envStr("LOG_LEVEL", &cfg.Log.Level)
	return nil
}

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("github.token is required (set GITHUB_TOKEN)")
	}
	if c.GitHub.Owner == "" {
		return fmt.Errorf("github.owner is required")
	}
	if c.GitHub.Repo == "" {
		return fmt.Errorf("github.repo is required")
	}
	if c.GitHub.Artifact == "" {
		return fmt.Errorf("github.artifact is required")
	}
	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("github.timeout must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	u, err := url.Parse(c.Server.Upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.upstream %q must be an absolute URL", c.Server.Upstream)
	}
	c.Server.Upstream = strings.TrimRight(c.Server.Upstream, "/")
	c.GitHub.APIURL = strings.TrimRight(c.GitHub.APIURL, "/")

	switch c.Cache.Backend {
	case "disk", "leveldb":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the %s backend", c.Cache.Backend)
		}
	case "postgres":
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("cache.backend %q is not one of disk, leveldb, postgres, memory", c.Cache.Backend)
	}

	if len(c.Broker.Brokers) > 0 && c.Broker.Topic == "" {
		return fmt.Errorf("broker.topic is required when broker.brokers is set")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, error", c.Log.Level)
	}
	return nil
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
