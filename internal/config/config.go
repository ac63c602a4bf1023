package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogFile    string `yaml:"log_file"`

	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`

	Queue  QueueConfig  `yaml:"queue"`
	Worker WorkerConfig `yaml:"worker"`
	Retry  RetryConfig  `yaml:"retry"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PostgresConfig struct {
	URI string `yaml:"uri"`
}

// QueueConfig controls coordinator-side queue behavior
type QueueConfig struct {
	ClaimTimeout     time.Duration `yaml:"claim_timeout"`     // Blocking dequeue bound (default: 1s, hard cap 1s)
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"` // Staleness threshold for worker reads (default: 30s)
}

// WorkerConfig controls the worker control loop
type WorkerConfig struct {
	Coordinator       string        `yaml:"coordinator"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Time between heartbeats (default: 10s)
	IdleSleep         time.Duration `yaml:"idle_sleep"`         // Sleep when stopped or queue empty (default: 1s)
	ErrorSleep        time.Duration `yaml:"error_sleep"`        // Sleep after a loop error (default: 5s)
	SchemaDir         string        `yaml:"schema_dir"`         // Filesystem fallback for schemas
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	RateLimitRetry time.Duration `yaml:"rate_limit_retry"`
}

// Default configuration values
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: "localhost:8000",
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 20,
		},
		Postgres: PostgresConfig{
			URI: os.Getenv("POSTGRES_URI"),
		},
		Queue: QueueConfig{
			ClaimTimeout:     1 * time.Second,
			HeartbeatTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			Coordinator:       "http://localhost:8000",
			HeartbeatInterval: 10 * time.Second,
			IdleSleep:         1 * time.Second,
			ErrorSleep:        5 * time.Second,
			SchemaDir:         "./schemas",
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BackoffBase:    10 * time.Second,
			RateLimitRetry: 5 * time.Minute,
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables in the format ${VAR}
	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadIfPresent loads path when it exists and falls back to defaults
// otherwise. The coordinator and worker both run fine on defaults.
func LoadIfPresent(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR} patterns with environment variable values
func expandEnvVars(data []byte) []byte {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(re.FindSubmatch(match)[1])
		return []byte(os.Getenv(varName))
	})
}
