package config

import (
	"fmt"

	s3storage "github.com/tendant/content-unit/pkg/contentunit/storage/s3"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case DatabaseMemory:
			c.DatabaseURL = ""
		case DatabasePostgres:
			if url == "" {
				return fmt.Errorf("database URL is required for postgres")
			}
			c.DatabaseURL = url
		case DatabaseSQLite:
			if url == "" {
				return fmt.Errorf("database path is required for sqlite")
			}
			c.SQLitePath = url
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate creates the Postgres schema and table on startup
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage keeps assets in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: StorageMemory}
		return nil
	}
}

// WithFilesystemStorage stores assets under baseDir
func WithFilesystemStorage(baseDir, urlPrefix string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: StorageFS, BaseDir: baseDir, URLPrefix: urlPrefix}
		return nil
	}
}

// WithS3Storage stores assets in an S3 bucket
func WithS3Storage(cfg s3storage.Config) Option {
	return func(c *ServerConfig) error {
		if cfg.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.Storage = StorageConfig{Type: StorageS3, S3: cfg}
		return nil
	}
}

// WithMinioStorage stores assets through minio-go, configured from a DSN
func WithMinioStorage(dsn string) Option {
	return func(c *ServerConfig) error {
		if dsn == "" {
			return fmt.Errorf("minio dsn cannot be empty")
		}
		c.Storage = StorageConfig{Type: StorageMinio, MinioDSN: dsn}
		return nil
	}
}

// WithRequireAssetOnCreate toggles the asset-required policy for new units
func WithRequireAssetOnCreate(required bool) Option {
	return func(c *ServerConfig) error {
		c.RequireAssetOnCreate = required
		return nil
	}
}

// WithJWTSecret enables HS256 bearer-token authentication on the HTTP API
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithEventLogging toggles the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithMetrics toggles Prometheus counters
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}
