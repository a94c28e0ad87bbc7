// Package container provides dependency injection and lifecycle management
// for the purchase order service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Kafka event publishing configuration
	Kafka KafkaConfig

	// Lark messaging configuration
	Lark LarkConfig

	// Storage configuration
	Storage StorageConfig

	// Server configuration
	Server ServerConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits on a locked database
	BusyTimeout time.Duration
}

// KafkaConfig holds event publishing settings. Publishing is off
// when Brokers is empty.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// Enabled reports whether events should be published
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// ReceiveIDType is how ApproverID is addressed (open_id by default)
	ReceiveIDType string

	// ApproverID receives a message whenever an order awaits approval
	ApproverID string
}

// Enabled reports whether approval notifications should be sent
func (l LarkConfig) Enabled() bool {
	return l.AppID != "" && l.AppSecret != ""
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ArchiveDir receives a final export of every order that reaches a
	// terminal status. Archiving is off when empty.
	ArchiveDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownTimeout bounds how long in-flight requests may finish
	ShutdownTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Integrity worker settings
	IntegrityEnabled      bool
	IntegrityScanInterval time.Duration
	IntegrityBatchSize    int

	// EventHandlerTimeout bounds each asynchronous event handler
	EventHandlerTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/procurement.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:        "purchase-order-events",
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
		},
		Lark: LarkConfig{
			ReceiveIDType: "open_id",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			IntegrityEnabled:      true,
			IntegrityScanInterval: 15 * time.Minute,
			IntegrityBatchSize:    200,
			EventHandlerTimeout:   30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}

	if c.Lark.Enabled() && c.Lark.ApproverID == "" {
		return fmt.Errorf("lark.approver_id is required when lark credentials are set")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	return nil
}
