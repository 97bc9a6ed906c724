package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/content-unit/pkg/contentunit"
	"github.com/tendant/content-unit/pkg/contentunit/metrics"
	"github.com/tendant/content-unit/pkg/contentunit/repo/memory"
	repopg "github.com/tendant/content-unit/pkg/contentunit/repo/postgres"
	reposqlite "github.com/tendant/content-unit/pkg/contentunit/repo/sqlite"
	fsstorage "github.com/tendant/content-unit/pkg/contentunit/storage/fs"
	memorystorage "github.com/tendant/content-unit/pkg/contentunit/storage/memory"
	miniostorage "github.com/tendant/content-unit/pkg/contentunit/storage/minio"
	s3storage "github.com/tendant/content-unit/pkg/contentunit/storage/s3"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Storage types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
	StorageMinio  = "minio"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                 "8080",
		Environment:          "development",
		LogLevel:             "info",
		DatabaseType:         DatabaseMemory,
		DBSchema:             "content",
		Storage:              StorageConfig{Type: StorageMemory},
		RequireAssetOnCreate: true,
		EnableEventLogging:   true,
		EnableMetrics:        true,
	}
}

// ServerConfig represents configuration for the content-unit service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	LogLevel    string // debug, info, warn, error

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use (default: content)
	SQLitePath   string
	AutoMigrate  bool

	// Asset storage configuration
	Storage StorageConfig

	// Workflow policy
	RequireAssetOnCreate bool

	// Server options
	EnableEventLogging bool
	EnableMetrics      bool
	JWTSecret          string
}

// StorageConfig selects and configures the asset store
type StorageConfig struct {
	Type string // "memory", "fs", "s3", "minio"

	// fs
	BaseDir   string
	URLPrefix string

	// s3
	S3 s3storage.Config

	// minio
	MinioDSN string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case DatabaseSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required when using sqlite")
		}
	default:
		return fmt.Errorf("database_type must be 'memory', 'postgres' or 'sqlite', got %q", c.DatabaseType)
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFS:
		if c.Storage.BaseDir == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("bucket is required for s3 storage")
		}
	case StorageMinio:
		if c.Storage.MinioDSN == "" {
			return errors.New("dsn is required for minio storage")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	return nil
}

// Logger builds the process logger: JSON in production, text elsewhere.
func (c *ServerConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Components holds the assembled service and the collaborators behind it.
type Components struct {
	Service    contentunit.Service
	Repository contentunit.DocumentRepository
	Assets     contentunit.AssetStore
	Registry   *prometheus.Registry

	pool    *pgxpool.Pool
	closers []func()
}

// Ready reports whether the document backend is reachable. Only Postgres
// has a remote dependency to check.
func (c *Components) Ready(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	return PingPostgres(ctx, c.pool)
}

// Close releases database handles opened by Build.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build creates the repository, asset store and Service described by the
// configuration. Extra options are applied after the configured ones.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, extra ...contentunit.Option) (*Components, error) {
	if logger == nil {
		logger = c.Logger()
	}
	comps := &Components{}

	repo, err := c.buildRepository(ctx, comps)
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	comps.Repository = repo

	store, err := c.buildAssetStore(ctx)
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build asset store %s: %w", c.Storage.Type, err)
	}
	comps.Assets = store

	options := []contentunit.Option{
		contentunit.WithRepository(repo),
		contentunit.WithAssetStore(store),
		contentunit.WithLogger(logger),
		contentunit.WithRequireAssetOnCreate(c.RequireAssetOnCreate),
	}

	if c.EnableEventLogging {
		options = append(options, contentunit.WithEventSink(contentunit.NewLoggingEventSink(logger)))
	}

	if c.EnableMetrics {
		comps.Registry = prometheus.NewRegistry()
		options = append(options, contentunit.WithRecorder(metrics.NewRecorder(comps.Registry)))
	}

	svc, err := contentunit.New(append(options, extra...)...)
	if err != nil {
		comps.Close()
		return nil, err
	}
	comps.Service = svc

	return comps, nil
}

// buildRepository creates a DocumentRepository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, comps *Components) (contentunit.DocumentRepository, error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil
	case DatabasePostgres:
		pool, err := repopg.NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, pool.Close)
		comps.pool = pool
		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := repopg.EnsureSchema(ctx, pool, c.DBSchema); err != nil {
				return nil, err
			}
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	case DatabaseSQLite:
		repo, err := reposqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, func() { _ = repo.Close() })
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// PingPostgres verifies that the pool can reach Postgres.
func PingPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildAssetStore creates an AssetStore based on the storage configuration
func (c *ServerConfig) buildAssetStore(ctx context.Context) (contentunit.AssetStore, error) {
	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.Storage.BaseDir,
			URLPrefix: c.Storage.URLPrefix,
		})

	case StorageS3:
		return s3storage.New(c.Storage.S3)

	case StorageMinio:
		dsn, err := url.Parse(c.Storage.MinioDSN)
		if err != nil {
			return nil, fmt.Errorf("invalid minio dsn: %w", err)
		}
		conf, err := miniostorage.ParseDSN(dsn)
		if err != nil {
			return nil, err
		}
		backend, err := miniostorage.FromDSN(dsn)
		if err != nil {
			return nil, err
		}
		if conf.CreateBucket {
			if err := backend.EnsureBucket(ctx, conf.Options.Region); err != nil {
				return nil, err
			}
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}
