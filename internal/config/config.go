package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. MEDIATRUST_SERVER_PORT.
const EnvPrefix = "MEDIATRUST"

// Config is read from YAML, then overridden from MEDIATRUST_* variables whose
// names follow the field path, e.g. MEDIATRUST_DATABASE_SSL_MODE.
type Config struct {
	Server    ServerConfig    `yaml:"server" split_words:"true"`
	Log       LogConfig       `yaml:"log" split_words:"true"`
	Archive   ArchiveConfig   `yaml:"archive" split_words:"true"`
	Database  DatabaseConfig  `yaml:"database" split_words:"true"`
	Upload    UploadConfig    `yaml:"upload" split_words:"true"`
	Detectors DetectorsConfig `yaml:"detectors" split_words:"true"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Minio     MinioConfig     `yaml:"minio" split_words:"true"`
	NATS      NATSConfig      `yaml:"nats" split_words:"true"`
	RateLimit RateLimitConfig `yaml:"rateLimit" split_words:"true"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" split_words:"true"`
	BasePath     string        `yaml:"basePath" split_words:"true"`
	Env          string        `yaml:"env" split_words:"true"`
	ReadTimeout  time.Duration `yaml:"readTimeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"writeTimeout" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"` // json | text
}

type ArchiveConfig struct {
	Driver       string        `yaml:"driver" split_words:"true"` // memory | sqlite | mysql | postgres
	Retries      int           `yaml:"retries" split_words:"true"`
	RetryBackoff time.Duration `yaml:"retryBackoff" split_words:"true"`
	// CacheSize records kept for GET by id; negative turns the cache off.
	CacheSize    int           `yaml:"cacheSize" split_words:"true"`
	Seed         bool          `yaml:"seed" split_words:"true"`
}

type DatabaseConfig struct {
	Path     string `yaml:"path" split_words:"true"` // sqlite only
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Name     string `yaml:"name" split_words:"true"`
	SSLMode  string `yaml:"sslMode" split_words:"true"`
}

type UploadConfig struct {
	MaxFileSize  int64    `yaml:"maxFileSize" split_words:"true"`
	AllowedTypes []string `yaml:"allowedTypes" split_words:"true"`
}

// DetectorConfig selects the implementation behind one detector role.
type DetectorConfig struct {
	Kind    string        `yaml:"kind" split_words:"true"` // random | fixed | heuristic | llm
	// nil means "use the role default"; an explicit 0 is kept
	Min     *int          `yaml:"min" split_words:"true"`
	Max     *int          `yaml:"max" split_words:"true"`
	Value   int           `yaml:"value" split_words:"true"`
	Seed    int64         `yaml:"seed" split_words:"true"`
	Latency time.Duration `yaml:"latency" split_words:"true"`
}

type DetectorsConfig struct {
	Timeout  time.Duration  `yaml:"timeout" split_words:"true"`
	Face     DetectorConfig `yaml:"face" split_words:"true"`
	Audio    DetectorConfig `yaml:"audio" split_words:"true"`
	Metadata DetectorConfig `yaml:"metadata" split_words:"true"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey" split_words:"true"`
	Model   string `yaml:"model" split_words:"true"`
	BaseURL string `yaml:"baseURL" split_words:"true"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint" split_words:"true"`
	AccessKey  string `yaml:"accessKey" split_words:"true"`
	SecretKey  string `yaml:"secretKey" split_words:"true"`
	BucketName string `yaml:"bucketName" split_words:"true"`
	Region     string `yaml:"region" split_words:"true"`
	UseSSL     bool   `yaml:"useSSL" split_words:"true"`
}

type NATSConfig struct {
	URL     string `yaml:"url" split_words:"true"`
	Subject string `yaml:"subject" split_words:"true"`
}

type RateLimitConfig struct {
	Capacity        int `yaml:"capacity" split_words:"true"`
	RefillPerSecond int `yaml:"refillPerSecond" split_words:"true"`
}

// Load baca file config.yaml, lalu override dari environment.
// A missing file is not an error; defaults and env still apply.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/api"
	}
	c.Server.BasePath = "/" + strings.Trim(c.Server.BasePath, "/")
	if c.Server.Env == "" {
		c.Server.Env = "dev"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Archive.Driver == "" {
		c.Archive.Driver = "memory"
	}
	if c.Archive.RetryBackoff == 0 {
		c.Archive.RetryBackoff = 200 * time.Millisecond
	}
	if c.Archive.CacheSize == 0 {
		c.Archive.CacheSize = 256
	}
	if c.Archive.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "data/mediatrust.db"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Port == 0 {
		switch c.Archive.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = 50 << 20
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{"video/", "audio/", "image/"}
	}
	if c.Detectors.Timeout == 0 {
		c.Detectors.Timeout = 30 * time.Second
	}
	// face scores lean high, the other two span the full range
	defaultDetector(&c.Detectors.Face, 60, 99)
	defaultDetector(&c.Detectors.Audio, 0, 99)
	defaultDetector(&c.Detectors.Metadata, 0, 99)
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "mediatrust"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "mediatrust.analysis.created"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 1
	}
}

func defaultDetector(d *DetectorConfig, min, max int) {
	if d.Kind == "" {
		d.Kind = "random"
	}
	if d.Kind != "random" {
		return
	}
	if d.Min == nil {
		d.Min = &min
	}
	if d.Max == nil {
		d.Max = &max
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Archive.Driver {
	case "memory", "sqlite":
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("archive driver %s needs database.host and database.name", c.Archive.Driver)
		}
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	if c.Archive.Retries < 0 {
		return fmt.Errorf("archive.retries must not be negative")
	}
	if c.Upload.MaxFileSize < 0 {
		return fmt.Errorf("upload.maxFileSize must not be negative")
	}
	for role, d := range map[string]DetectorConfig{
		"face":     c.Detectors.Face,
		"audio":    c.Detectors.Audio,
		"metadata": c.Detectors.Metadata,
	} {
		if err := d.validate(); err != nil {
			return fmt.Errorf("detectors.%s: %w", role, err)
		}
		if d.Kind == "llm" && c.OpenAI.APIKey == "" {
			return fmt.Errorf("detectors.%s: kind llm needs openai.apiKey", role)
		}
	}
	if c.Minio.Endpoint != "" && (c.Minio.AccessKey == "" || c.Minio.SecretKey == "") {
		return fmt.Errorf("minio endpoint set without credentials")
	}
	return nil
}

// Range returns the random score bounds, treating unset ends as 0.
func (d DetectorConfig) Range() (int, int) {
	var lo, hi int
	if d.Min != nil {
		lo = *d.Min
	}
	if d.Max != nil {
		hi = *d.Max
	}
	return lo, hi
}

func (d DetectorConfig) validate() error {
	switch d.Kind {
	case "random":
		lo, hi := d.Range()
		if lo < 0 || hi > 100 || lo > hi {
			return fmt.Errorf("random range [%d,%d] must lie within [0,100]", lo, hi)
		}
	case "fixed":
		if d.Value < 0 || d.Value > 100 {
			return fmt.Errorf("fixed value %d outside [0,100]", d.Value)
		}
	case "heuristic", "llm":
	default:
		return fmt.Errorf("unknown detector kind %q", d.Kind)
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

// Helper untuk build DSN Postgres (lib/pq key=value form)
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
