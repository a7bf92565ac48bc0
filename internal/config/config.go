// Package config provides configuration loading for doris-core.
//
// Precedence (lowest to highest): built-in defaults, an optional YAML file,
// a .env file in the working directory, DORIS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nucleus/doris-core/internal/core"
)

const (
	DefaultSQLPort       = 9030
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 3 * time.Second
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultRateLimit     = 10.0
	DefaultRateBurst     = 5
	DefaultBucketUnit    = 500 * 1024 * 1024
	DefaultMetaFlushRows = 30000
	DefaultSpillBucket   = "doris-spill"
	DefaultSpillPrefix   = "streamload"
)

// Config holds everything needed to build a session and its clients.
type Config struct {
	Cluster   ClusterConfig   `yaml:"cluster"`
	Retry     RetryConfig     `yaml:"retry"`
	HTTP      HTTPConfig      `yaml:"http"`
	Migration MigrationConfig `yaml:"migration"`
	Meta      MetaConfig      `yaml:"meta"`
	Spill     SpillConfig     `yaml:"spill"`
	LogLevel  string          `yaml:"logLevel"`
}

// ClusterConfig describes the front-end nodes and credentials.
type ClusterConfig struct {
	// Frontends are "host:http_port" strings in probe priority order.
	Frontends []string `yaml:"frontends"`
	Database  string   `yaml:"database"`
	User      string   `yaml:"user"`
	Password  string   `yaml:"password"`
	// SQLPort is the MySQL protocol port on the first front-end (default 9030).
	SQLPort int `yaml:"sqlPort"`
}

// RetryConfig configures the stream load retry policy.
type RetryConfig struct {
	MaxRetries int           `yaml:"maxRetries"`
	Delay      time.Duration `yaml:"delay"`
}

// HTTPConfig configures the stream load transport.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rateLimit"`
	RateBurst int           `yaml:"rateBurst"`
}

// MigrationConfig configures the re-bucketing engine.
type MigrationConfig struct {
	// BucketUnitBytes is the physical size that earns one bucket.
	BucketUnitBytes int64 `yaml:"bucketUnitBytes"`
}

// MetaConfig configures the metadata harvester.
type MetaConfig struct {
	FlushRows    int  `yaml:"flushRows"`
	IncludeViews bool `yaml:"includeViews"`
}

// SpillConfig configures the load journal and the archive of exhausted
// batches. Both are off unless Enabled is set.
type SpillConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	// LocalRoot is used when no endpoint is configured.
	LocalRoot string `yaml:"localRoot"`
}

// Default returns a config populated with defaults only.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

// newConfig presets the fields whose zero value is a valid setting, so a
// file or environment can still set them to zero.
func newConfig() *Config {
	return &Config{Retry: RetryConfig{MaxRetries: DefaultMaxRetries}}
}

// Load reads path (optional, may be empty), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := newConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, core.Configurationf("parse config %s: %v", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Validate checks the fields required to open a session.
func (c *Config) Validate() error {
	switch {
	case len(c.Cluster.Frontends) == 0:
		return core.Configurationf("cluster.frontends is required")
	case c.Cluster.Database == "":
		return core.Configurationf("cluster.database is required")
	case c.Cluster.User == "":
		return core.Configurationf("cluster.user is required")
	case c.Cluster.Password == "":
		return core.Configurationf("cluster.password is required")
	}
	if _, err := core.ParseEndpoints(c.Cluster.Frontends); err != nil {
		return err
	}
	if c.Retry.MaxRetries < 0 {
		return core.Configurationf("retry.maxRetries must not be negative")
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := getEnv("DORIS_FRONTENDS", ""); v != "" {
		c.Cluster.Frontends = splitList(v)
	}
	c.Cluster.Database = getEnv("DORIS_DATABASE", c.Cluster.Database)
	c.Cluster.User = getEnv("DORIS_USER", c.Cluster.User)
	c.Cluster.Password = getEnv("DORIS_PASSWORD", c.Cluster.Password)
	c.Cluster.SQLPort = getEnvInt("DORIS_SQL_PORT", c.Cluster.SQLPort)
	c.Retry.MaxRetries = getEnvInt("DORIS_MAX_RETRIES", c.Retry.MaxRetries)
	c.Retry.Delay = getEnvDuration("DORIS_RETRY_DELAY", c.Retry.Delay)
	c.HTTP.Timeout = getEnvDuration("DORIS_HTTP_TIMEOUT", c.HTTP.Timeout)
	c.LogLevel = getEnv("DORIS_LOG_LEVEL", c.LogLevel)

	c.Spill.Endpoint = getEnv("MINIO_ENDPOINT", c.Spill.Endpoint)
	c.Spill.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Spill.AccessKey)
	c.Spill.SecretKey = getEnv("MINIO_SECRET_KEY", c.Spill.SecretKey)
	if v := getEnv("MINIO_USE_SSL", ""); v != "" {
		c.Spill.UseSSL = v == "true"
	}
	if v := getEnv("DORIS_SPILL_ENABLED", ""); v != "" {
		c.Spill.Enabled = v == "true"
	}
}

func (c *Config) applyDefaults() {
	if c.Cluster.SQLPort == 0 {
		c.Cluster.SQLPort = DefaultSQLPort
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = DefaultRetryDelay
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = DefaultRateLimit
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = DefaultRateBurst
	}
	if c.Migration.BucketUnitBytes == 0 {
		c.Migration.BucketUnitBytes = DefaultBucketUnit
	}
	if c.Meta.FlushRows == 0 {
		c.Meta.FlushRows = DefaultMetaFlushRows
	}
	if c.Spill.Bucket == "" {
		c.Spill.Bucket = DefaultSpillBucket
	}
	if c.Spill.Prefix == "" {
		c.Spill.Prefix = DefaultSpillPrefix
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
