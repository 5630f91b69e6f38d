// Package config loads the service configuration from YAML
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverCSV      = "csv"
)

// Config is the root configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Clustering ClusteringConfig `yaml:"clustering"`
}

// LoggingConfig controls the logrus logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigin   string        `yaml:"allowed_origin"`
	EnableMetrics   bool          `yaml:"enable_metrics"`
}

// StorageConfig selects and configures the snapshot store
type StorageConfig struct {
	Driver string `yaml:"driver"`

	// SnapshotID pins the snapshot served; empty serves the latest
	SnapshotID string `yaml:"snapshot_id"`

	SQLite     SQLiteConfig     `yaml:"sqlite"`
	CSV        CSVConfig        `yaml:"csv"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
}

// SQLiteConfig configures the SQLite snapshot store
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// CSVConfig configures the CSV snapshot store
type CSVConfig struct {
	Dir string `yaml:"dir"`
}

// PostgreSQLConfig contains database configuration
type PostgreSQLConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// ClusteringConfig holds the offline clusterer parameters
type ClusteringConfig struct {
	Clusters      int     `yaml:"clusters"`
	Seed          int64   `yaml:"seed"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	Restarts      int     `yaml:"restarts"`
}

// DefaultClusteringConfig returns the clustering defaults
func DefaultClusteringConfig() *ClusteringConfig {
	return &ClusteringConfig{
		Clusters:      5,
		Seed:          42,
		MaxIterations: 300,
		Tolerance:     1e-4,
		Restarts:      10,
	}
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file, substitutes environment references and applies
// defaults. An empty path or a missing file yields the defaults.
func Load(path string, log logrus.FieldLogger) (*Config, error) {
	log = log.WithField("component", "config")

	if path == "" {
		log.Info("No config path provided, using defaults")
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Info("Config file not found, using defaults")
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"path":           path,
		"storage_driver": cfg.Storage.Driver,
		"server_addr":    cfg.Server.Addr,
		"clusters":       cfg.Clustering.Clusters,
	}).Info("Loaded configuration")

	return cfg, nil
}

// Parse decodes YAML config content
func Parse(data []byte) (*Config, error) {
	content, err := SubstituteEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = "*"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "data/peerbench.db"
	}
	if c.Storage.CSV.Dir == "" {
		c.Storage.CSV.Dir = "data/snapshots"
	}
	pg := &c.Storage.PostgreSQL
	if pg.Host == "" {
		pg.Host = "localhost"
	}
	if pg.Port == 0 {
		pg.Port = 5432
	}
	if pg.Database == "" {
		pg.Database = "peerbench"
	}
	if pg.User == "" {
		pg.User = "postgres"
	}
	if pg.SSLMode == "" {
		pg.SSLMode = "disable"
	}
	if pg.MaxOpenConns == 0 {
		pg.MaxOpenConns = 10
	}
	if pg.MaxIdleConns == 0 {
		pg.MaxIdleConns = 5
	}

	defaults := DefaultClusteringConfig()
	if c.Clustering.Clusters == 0 {
		c.Clustering.Clusters = defaults.Clusters
	}
	if c.Clustering.Seed == 0 {
		c.Clustering.Seed = defaults.Seed
	}
	if c.Clustering.MaxIterations == 0 {
		c.Clustering.MaxIterations = defaults.MaxIterations
	}
	if c.Clustering.Tolerance == 0 {
		c.Clustering.Tolerance = defaults.Tolerance
	}
	if c.Clustering.Restarts == 0 {
		c.Clustering.Restarts = defaults.Restarts
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if err := c.Storage.PostgreSQL.Validate(); err != nil {
			return fmt.Errorf("invalid PostgreSQL configuration: %w", err)
		}
	case DriverSQLite, DriverCSV:
	default:
		return fmt.Errorf("storage.driver must be one of %s, got %q",
			strings.Join([]string{DriverPostgres, DriverSQLite, DriverCSV}, ", "), c.Storage.Driver)
	}

	return c.Clustering.Validate()
}

// Validate validates the PostgreSQL configuration
func (c *PostgreSQLConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be greater than 0")
	}
	if c.MaxIdleConns <= 0 {
		return fmt.Errorf("max_idle_conns must be greater than 0")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgreSQLConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Validate validates the clustering parameters. The persona table fixes the cluster
// count at five.
func (c *ClusteringConfig) Validate() error {
	if c.Clusters != 5 {
		return fmt.Errorf("clustering.clusters must be 5, got %d", c.Clusters)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("clustering.max_iterations must be greater than 0")
	}
	if c.Restarts < 0 {
		return fmt.Errorf("clustering.restarts must not be negative")
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("clustering.tolerance must not be negative")
	}
	return nil
}

// NewLogger builds a logrus logger from the logging section
func NewLogger(cfg LoggingConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	return logger, nil
}
