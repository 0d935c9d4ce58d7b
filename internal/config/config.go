package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to accept human-readable YAML values
// such as "60s" or "5m".
type Duration time.Duration

// UnmarshalYAML parses a duration string into the wrapped time.Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalYAML renders the duration in its human-readable form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped standard-library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SchedulerConfig controls the alarm polling loop.
type SchedulerConfig struct {
	// PollInterval is the period between due-alarm polls.
	PollInterval Duration `yaml:"poll_interval"`
	// BatchSize caps how many due alarms a single tick may process.
	BatchSize int `yaml:"batch_size"`
	// InitialJitterMax bounds the random startup and inter-tick delay
	// used to desynchronize replicas polling the same store.
	InitialJitterMax Duration `yaml:"initial_jitter_max"`
	// Mode selects the deployment model: "single", "cluster"
	// (aliases: "distributed", "multi") or "disabled".
	Mode string `yaml:"mode"`
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	// URI is the MongoDB connection string.
	URI string `yaml:"uri"`
	// Database is the database holding the alarm collections.
	Database string `yaml:"database"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is either "memory" (single process) or "mongodb".
	Backend string `yaml:"backend"`
	// Mongo is required when Backend is "mongodb".
	Mongo MongoConfig `yaml:"mongodb"`
}

// SMTPConfig holds outgoing mail transport parameters.
type SMTPConfig struct {
	// Host is the SMTP relay hostname.
	Host string `yaml:"host"`
	// Port is the SMTP relay port.
	Port int `yaml:"port"`
	// Sender is the envelope and header From address for reminder mails.
	Sender string `yaml:"sender"`
	// Username authenticates against the relay; empty disables auth.
	Username string `yaml:"username"`
	// Password authenticates against the relay.
	Password string `yaml:"password"`
}

// Config holds all settings consumed by the scheduler daemon.
type Config struct {
	// LogLevel is the minimum level emitted ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
	// HealthAddress is the listen address of the gRPC health endpoint.
	// Empty disables the endpoint.
	HealthAddress string `yaml:"health_address"`
	// ManagedDomains lists the mail domains this deployment manages.
	// Recipients outside it keep default settings and skip delivery
	// checks. Empty accepts every domain.
	ManagedDomains []string `yaml:"managed_domains"`
	// Scheduler configures the polling loop.
	Scheduler SchedulerConfig `yaml:"scheduler"`
	// Storage configures alarm and claim persistence.
	Storage StorageConfig `yaml:"storage"`
	// SMTP configures reminder mail delivery.
	SMTP SMTPConfig `yaml:"smtp"`
}

// Scheduler modes. Aliases "distributed" and "multi" map to ModeCluster.
const (
	ModeSingle   = "single"
	ModeCluster  = "cluster"
	ModeDisabled = "disabled"
)

// Storage backends.
const (
	BackendMemory  = "memory"
	BackendMongoDB = "mongodb"
)

const (
	// DefaultConfigFilename is the default configuration file name.
	DefaultConfigFilename = "calarm.yaml"

	// DefaultPollInterval is the default period between due-alarm polls.
	DefaultPollInterval = 60 * time.Second

	// DefaultBatchSize is the default cap on alarms processed per tick.
	DefaultBatchSize = 1000

	// DefaultInitialJitterMax is the default jitter ceiling.
	DefaultInitialJitterMax = 30 * time.Second

	// DefaultSMTPPort is the default SMTP submission port.
	DefaultSMTPPort = 587
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errPollIntervalNotPositive rejects zero or negative poll intervals.
	errPollIntervalNotPositive = errors.New("scheduler poll interval must be positive")
	// errBatchSizeNotPositive rejects zero or negative batch sizes.
	errBatchSizeNotPositive = errors.New("scheduler batch size must be positive")
	// errJitterNotPositive rejects zero or negative jitter ceilings.
	errJitterNotPositive = errors.New("scheduler initial jitter max must be positive")
	// errMongoURIRequired is returned when the mongodb backend lacks a URI.
	errMongoURIRequired = errors.New("storage mongodb uri must be provided")
	// errMongoDatabaseRequired is returned when the mongodb backend lacks a database.
	errMongoDatabaseRequired = errors.New("storage mongodb database must be provided")
	// errSMTPHostRequired is returned when the scheduler is enabled without a mail relay.
	errSMTPHostRequired = errors.New("smtp host must be provided when the scheduler is enabled")
	// errSMTPSenderRequired is returned when the scheduler is enabled without a sender address.
	errSMTPSenderRequired = errors.New("smtp sender must be provided when the scheduler is enabled")
)

// Load reads configuration from the provided path, applies defaults
// and validates it. Invalid configuration is a startup failure, never
// a runtime one.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate applies defaults and checks the provided settings.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = Duration(DefaultPollInterval)
	}

	if cfg.Scheduler.PollInterval < 0 {
		return errPollIntervalNotPositive
	}

	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = DefaultBatchSize
	}

	if cfg.Scheduler.BatchSize < 0 {
		return errBatchSizeNotPositive
	}

	if cfg.Scheduler.InitialJitterMax == 0 {
		cfg.Scheduler.InitialJitterMax = Duration(DefaultInitialJitterMax)
	}

	if cfg.Scheduler.InitialJitterMax < 0 {
		return errJitterNotPositive
	}

	mode, err := normalizeMode(cfg.Scheduler.Mode)
	if err != nil {
		return err
	}

	cfg.Scheduler.Mode = mode

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendMongoDB:
		if cfg.Storage.Mongo.URI == "" {
			return errMongoURIRequired
		}

		if cfg.Storage.Mongo.Database == "" {
			return errMongoDatabaseRequired
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = DefaultSMTPPort
	}

	if mode != ModeDisabled {
		if cfg.SMTP.Host == "" {
			return errSMTPHostRequired
		}

		if cfg.SMTP.Sender == "" {
			return errSMTPSenderRequired
		}
	}

	return nil
}

// normalizeMode maps user-facing mode strings, including the
// "distributed" and "multi" aliases, onto the canonical constants.
func normalizeMode(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeDisabled:
		return ModeDisabled, nil
	case ModeSingle:
		return ModeSingle, nil
	case ModeCluster, "distributed", "multi":
		return ModeCluster, nil
	default:
		return "", fmt.Errorf("unknown scheduler mode %q", mode)
	}
}
