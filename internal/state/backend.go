package state

import (
	"context"
	"fmt"

	"github.com/postnome/postnome/internal/ir"
)

// Backend defines the interface for settings storage backends.
type Backend interface {
	// Read loads the settings document from the backend.
	Read(ctx context.Context) (*ir.Document, error)

	// Write saves the settings document to the backend.
	Write(ctx context.Context, doc *ir.Document) error

	// Lock acquires an exclusive lock on the settings.
	Lock() error

	// Unlock releases the lock on the settings.
	Unlock() error
}

// BackendConfig holds configuration for a settings backend.
type BackendConfig struct {
	Type   string            `json:"type" mapstructure:"type"` // "local", "s3", "redis"
	Config map[string]string `json:"config" mapstructure:"config"`
}

// S3BackendConfig documents the keys read from BackendConfig.Config for "s3".
type S3BackendConfig struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	Region        string `json:"region"`
	DynamoDBTable string `json:"dynamodb_table"` // for locking
	Encrypt       bool   `json:"encrypt"`
	Profile       string `json:"profile"`
	Endpoint      string `json:"endpoint"`
}

// RedisBackendConfig documents the keys read from BackendConfig.Config for "redis".
type RedisBackendConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// NewBackend creates a settings backend from configuration. localPath is the
// settings file used by the local backend when the config does not name one.
func NewBackend(cfg *BackendConfig, localPath, format string) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		path := cfg.Config["path"]
		if path == "" {
			path = localPath
		}
		if path == "" {
			return nil, fmt.Errorf("local backend requires a settings path")
		}
		return NewManager(path, format), nil
	case "s3":
		return newS3Backend(cfg.Config)
	case "redis":
		return newRedisBackend(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
