package runner

import (
	"context"
	"database/sql"
	"errors"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pagevault/libsync/connector"
	"github.com/pagevault/libsync/exporter"
	"github.com/pagevault/libsync/importer"
	"github.com/pagevault/libsync/models"
	"github.com/pagevault/libsync/pkg/encryption"
	"github.com/pagevault/libsync/postgres"
	"github.com/pagevault/libsync/redis"
	"github.com/pagevault/libsync/s3uploader"
)

// Core bundles the sync engines and their dependencies shared by the web and
// worker run modes.
type Core struct {
	Logger       *zap.Logger
	Integrations models.IntegrationStore
	Pages        models.PageStore
	Registry     *connector.Registry
	Engine       *exporter.Engine
	Pipeline     *importer.Pipeline

	db *sql.DB
}

// NewCore wires the postgres stores, the provider registry, the staging sink
// and the engines from the configuration.
func NewCore(ctx context.Context, cfg *Config) (*Core, error) {
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}

	if cfg.Dsn == "" {
		return nil, errors.New("database connection string is required")
	}

	db, err := sql.Open("pgx", cfg.Dsn)
	if err != nil {
		return nil, err
	}

	if err := postgres.CreateSchema(ctx, db); err != nil {
		return nil, err
	}

	cipher, err := encryption.New([]byte(os.Getenv("ENCRYPTION_KEY")))
	if err != nil {
		return nil, err
	}

	integrations, err := postgres.NewIntegrationStore(db, cipher)
	if err != nil {
		return nil, err
	}

	pages := postgres.NewPageStore(db)

	registry := connector.NewRegistry(
		connector.NewReadwise(logger),
		connector.NewPocket(cfg.PocketConsumerKey, logger),
	)

	sink, err := newSink(cfg)
	if err != nil {
		return nil, err
	}

	locker, err := newLocker(cfg)
	if err != nil {
		return nil, err
	}

	return &Core{
		Logger:       logger,
		Integrations: integrations,
		Pages:        pages,
		Registry:     registry,
		Engine:       exporter.NewEngine(integrations, pages, registry, logger),
		Pipeline:     importer.NewPipeline(integrations, registry, sink, locker, logger),
		db:           db,
	}, nil
}

func (c *Core) Close() error {
	_ = c.Logger.Sync()

	return c.db.Close()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func newSink(cfg *Config) (importer.StagingSink, error) {
	if cfg.S3Bucket == "" {
		return importer.NewFileSink(cfg.DataFolder), nil
	}

	return s3uploader.New(cfg.AwsAccessKey, cfg.AwsSecretKey, cfg.AwsRegion, cfg.S3Bucket)
}

// newLocker uses the shared Redis lease when Redis is configured; a single
// node falls back to the in-process lock.
func newLocker(cfg *Config) (importer.Locker, error) {
	redisCfg, err := redis.NewConfig()
	if err != nil {
		return nil, err
	}

	if os.Getenv("REDIS_URL") == "" && os.Getenv("REDIS_HOST") == "" {
		return importer.NewMemoryLocker(), nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	return importer.NewRedisLocker(client, cfg.ImportLeaseTTL), nil
}
