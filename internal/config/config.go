package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates sections: AUTOMATON_ANALYZER__MODEL -> analyzer.model.
const EnvPrefix = "AUTOMATON_"

type Config struct {
	Server   Server   `koanf:"server"`
	Database Database `koanf:"database"`
	Queue    Queue    `koanf:"queue"`
	Git      Git      `koanf:"git"`
	Analyzer Analyzer `koanf:"analyzer"`
	Pipeline Pipeline `koanf:"pipeline"`
	Minio    Minio    `koanf:"minio"`
	Log      Log      `koanf:"log"`
}

type Server struct {
	Port              int               `koanf:"port"`
	CORSOrigins       []string          `koanf:"cors_origins"`
	APIKeys           map[string]string `koanf:"api_keys"`
	RateLimitRPS      float64           `koanf:"rate_limit_rps"`
	RateLimitBurst    int               `koanf:"rate_limit_burst"`
	AllowPrivateHosts bool              `koanf:"allow_private_hosts"`
}

type Database struct {
	Driver   string `koanf:"driver"` // memory | mysql | postgres
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
	MaxOpen  int    `koanf:"max_open_conns"`
}

type Queue struct {
	Backend     string `koanf:"backend"` // memory | river
	Workers     int    `koanf:"workers"`
	Buffer      int    `koanf:"buffer"`
	MaxAttempts int    `koanf:"max_attempts"`
	SealKey     string `koanf:"seal_key"`
}

type Git struct {
	Binary       string        `koanf:"binary"`
	PostBuffer   int64         `koanf:"post_buffer"`
	Depth        int           `koanf:"depth"`
	CloneRetries int           `koanf:"clone_retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	WorkRoot     string        `koanf:"work_root"`
}

type Analyzer struct {
	Provider      string  `koanf:"provider"` // openai | langchain | gemini
	Model         string  `koanf:"model"`
	APIKey        string  `koanf:"api_key"`
	BaseURL       string  `koanf:"base_url"`
	Language      string  `koanf:"language"`
	Extension     string  `koanf:"extension"`
	MaxTokens     int     `koanf:"max_tokens"`
	Temperature   float64 `koanf:"temperature"`
	MaxAttempts   int     `koanf:"max_attempts"`
	RateLimitRPS  float64 `koanf:"rate_limit_rps"`
	StrictSchema  bool    `koanf:"strict_schema"`
	RepairJSON    bool    `koanf:"repair_json"`
	RedactSecrets bool    `koanf:"redact_secrets"`
}

type Pipeline struct {
	FetchTimeout       time.Duration `koanf:"fetch_timeout"`
	MaterializeTimeout time.Duration `koanf:"materialize_timeout"`
	CollectTimeout     time.Duration `koanf:"collect_timeout"`
	AnalyzeTimeout     time.Duration `koanf:"analyze_timeout"`
}

type Minio struct {
	Enabled    bool   `koanf:"enabled"`
	Endpoint   string `koanf:"endpoint"`
	AccessKey  string `koanf:"accessKey"`
	SecretKey  string `koanf:"secretKey"`
	BucketName string `koanf:"bucketName"`
	Region     string `koanf:"region"`
	UseSSL     bool   `koanf:"useSSL"`
}

type Log struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                  8080,
		"server.cors_origins":          []string{"*"},
		"server.rate_limit_rps":        5.0,
		"server.rate_limit_burst":      20,
		"database.driver":              "memory",
		"database.sslmode":             "disable",
		"database.max_open_conns":      25,
		"queue.backend":                "memory",
		"queue.workers":                4,
		"queue.buffer":                 64,
		"queue.max_attempts":           1,
		"git.binary":                   "git",
		"git.post_buffer":              int64(524288000),
		"git.depth":                    1,
		"git.clone_retries":            3,
		"git.retry_backoff":            "2s",
		"analyzer.provider":            "openai",
		"analyzer.model":               "gpt-3.5-turbo",
		"analyzer.language":            "Python",
		"analyzer.extension":           ".py",
		"analyzer.max_tokens":          2048,
		"analyzer.max_attempts":        1,
		"pipeline.fetch_timeout":       "10m",
		"pipeline.materialize_timeout": "5m",
		"pipeline.collect_timeout":     "2m",
		"pipeline.analyze_timeout":     "30m",
		"log.level":                    "info",
	}
}

// yamlParser adapts yaml.v3 to the koanf Parser interface.
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(o map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(o)
}

// Load baca defaults, lalu file config.yaml (kalau ada), lalu env.
// A missing file at path is not an error; an unreadable or invalid one is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yamlParser{}); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Queue.Backend {
	case "memory":
	case "river":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("queue backend river requires database driver postgres")
		}
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	if c.Git.CloneRetries < 1 {
		return fmt.Errorf("git.clone_retries must be at least 1")
	}
	if !strings.HasPrefix(c.Analyzer.Extension, ".") {
		return fmt.Errorf("analyzer.extension must start with a dot, got %q", c.Analyzer.Extension)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a URL-style DSN usable by both lib/pq and pgx.
// Credentials and database name are escaped.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}
