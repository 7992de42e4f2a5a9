package configs

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config defines all environment variables and derived config for the helper binaries.
type Config struct {
	// Transformed time.Duration fields (not loaded from env directly)
	MonitorPollingDuration time.Duration `env:"-"` // Queue depth polling interval (duration)
	CacheSnapshotDuration  time.Duration `env:"-"` // Snapshot TTL (duration)

	AwsRegion   string `env:"AWS_REGION" envDefault:"us-east-1"`
	SqsEndpoint string `env:"SQS_ENDPOINT"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	ReceiveMaxMessages       int32    `env:"RECEIVE_MAX_MESSAGES" envDefault:"10"`
	ReceiveVisibilityTimeout int32    `env:"RECEIVE_VISIBILITY_TIMEOUT" envDefault:"10"`
	ReceiveWaitTimeSeconds   int32    `env:"RECEIVE_WAIT_TIME_SECONDS" envDefault:"0"`
	MonitorQueueUrls         []string `env:"MONITOR_QUEUE_URLS" envSeparator:","`
	MonitorPollingInterval   int      `env:"MONITOR_POLLING_INTERVAL" envDefault:"30"`
	HttpAddr                 string   `env:"HTTP_ADDR" envDefault:":8080"`

	CacheRedisEndpoint     string `env:"CACHE_REDIS_ENDPOINT"`
	CacheRedisDB           int    `env:"CACHE_REDIS_DB" envDefault:"0"`
	CacheSnapshotKeyPrefix string `env:"CACHE_SNAPSHOT_KEY_PREFIX" envDefault:"sqs-depth-"`
	CacheSnapshotTTL       int    `env:"CACHE_SNAPSHOT_TTL" envDefault:"300"`

	LeaderElectionEnabled  bool   `env:"LEADER_ELECTION_ENABLED" envDefault:"false"`
	LeaderElectionLockName string `env:"LEADER_ELECTION_LOCK_NAME" envDefault:"aws-sqs-helper-monitor-lock"`
	PodName                string `env:"POD_NAME"`
	PodNamespace           string `env:"POD_NAMESPACE"`
}

// Parse loads configuration from environment variables, validates and normalizes it.
func Parse() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.normalize()

	return &cfg, nil
}

// validate performs all required configuration checks.
func (c *Config) validate() error {
	if c.AwsRegion == "" {
		return errors.New("AWS_REGION must not be empty")
	}

	if c.ReceiveMaxMessages <= 0 || c.ReceiveMaxMessages > 10 {
		return errors.New("RECEIVE_MAX_MESSAGES must be between 1 and 10")
	}

	if c.ReceiveVisibilityTimeout < 0 {
		return errors.New("RECEIVE_VISIBILITY_TIMEOUT must not be negative")
	}

	if c.ReceiveWaitTimeSeconds < 0 || c.ReceiveWaitTimeSeconds > 20 {
		return errors.New("RECEIVE_WAIT_TIME_SECONDS must be between 0 and 20")
	}

	if c.MonitorPollingInterval <= 0 {
		return errors.New("MONITOR_POLLING_INTERVAL must be greater than 0")
	}

	if c.CacheRedisEndpoint != "" && c.CacheSnapshotTTL <= 0 {
		return errors.New("CACHE_SNAPSHOT_TTL must be greater than 0")
	}

	if c.LeaderElectionEnabled {
		if c.PodName == "" {
			return errors.New("POD_NAME is required for leader election")
		}
		if c.PodNamespace == "" {
			return errors.New("POD_NAMESPACE is required for leader election")
		}
	}

	return nil
}

// normalize converts int values to duration and sets derived fields.
func (c *Config) normalize() {
	c.MonitorPollingDuration = time.Duration(c.MonitorPollingInterval) * time.Second
	c.CacheSnapshotDuration = time.Duration(c.CacheSnapshotTTL) * time.Second
}
