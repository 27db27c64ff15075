// Package common builds the worker's clients from config.
package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-retryablehttp"
	sloggorm "github.com/orandin/slog-gorm"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	"github.com/inacomp/submission-judge/internal/config"
	"github.com/inacomp/submission-judge/internal/events"
	"github.com/inacomp/submission-judge/internal/judge"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/queue"
	"github.com/inacomp/submission-judge/internal/store/migrations"
	"github.com/inacomp/submission-judge/internal/transcript"
	"github.com/inacomp/submission-judge/internal/upload"
)

func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// rdb is only used by the redis backend and may be nil otherwise.
func NewQueuer(cfg *config.Config, rdb *redis.Client) (queue.Queuer, error) {
	switch cfg.Queue.Backend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis queue needs a redis client")
		}
		return queue.NewRedisQueuer(rdb, cfg.Queue.Name), nil
	case "azure":
		var opts []queue.AzureOption
		if cfg.Queue.Azure.MaxDeliveries > 0 {
			opts = append(opts, queue.WithMaxDeliveries(cfg.Queue.Azure.MaxDeliveries))
		}
		return queue.NewAzureQueuer(
			cfg.Queue.Azure.AccountName,
			cfg.Queue.Azure.AccountKey,
			cfg.Queue.Azure.URL,
			cfg.Queue.Name,
			cfg.Queue.EmptyWait,
			opts...,
		)
	case "kafka":
		return queue.NewKafkaQueuer(queue.KafkaConfig{
			Brokers: cfg.Queue.Kafka.Brokers,
			Topic:   cfg.Queue.Name,
			GroupID: cfg.Queue.Kafka.GroupID,
		})
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

func NewJudgeClient(cfg *config.Config) (*judge.HTTPClient, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Judge.RetryMax
	retryClient.Logger = logger.Logger
	retryClient.HTTPClient.Timeout = cfg.Judge.RequestTimeout

	opts := []judge.Option{judge.WithPollInterval(cfg.Judge.PollInterval)}
	if cfg.Judge.AuthToken != "" {
		opts = append(opts, judge.WithAuthToken(cfg.Judge.AuthToken))
	}

	return judge.NewHTTPClient(retryClient.StandardClient(), cfg.Judge.URL, opts...)
}

// NewPublisher returns the publisher for relay.mode. A *events.RelayClient must be Run by the
// caller before it delivers anything.
func NewPublisher(cfg *config.Config, rdb *redis.Client) (events.Publisher, error) {
	switch cfg.Relay.Mode {
	case "websocket":
		return events.NewRelayClient(cfg.Relay.URL), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis publisher needs a redis client")
		}
		return events.NewRedisPublisher(rdb, cfg.Relay.ChannelPrefix), nil
	case "none":
		return events.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown relay mode %q", cfg.Relay.Mode)
	}
}

// OpenDB connects to postgres and migrates the schema to the latest version.
func OpenDB(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.Database == "" {
		return nil, errors.New("postgres user, password and database are required")
	}

	gormLogger := slog.New(logger.Handler)
	opts := []sloggorm.Option{
		sloggorm.WithHandler(gormLogger.Handler()),
		sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
	}
	if cfg.Logging.Gorm.TraceQueries {
		opts = append(opts, sloggorm.WithTraceAll())
	}

	db, err := gorm.Open(
		postgres.Open(cfg.PostgresDSN()),
		&gorm.Config{Logger: sloggorm.New(opts...), TranslateError: true},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire underlying database connection: %w", err)
	}

	// Configure db connection pool
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnectionTTL)

	if err := db.Use(gormtracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("failed to add otel plugin to gorm: %w", err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to perform database migrations: %w", err)
	}

	return db, nil
}

// NewArchiver returns nil when archiving is disabled. The bucket or container is created if it
// is missing.
func NewArchiver(ctx context.Context, cfg *config.Config) (*transcript.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	var uploader upload.Uploader
	switch cfg.Archive.Backend {
	case "minio":
		m := cfg.Archive.Minio
		minioArchive, err := upload.NewMinioArchive(
			m.Endpoint,
			m.AccessKeyID,
			m.SecretAccessKey,
			m.SSLEnabled,
			m.BucketName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to construct minio archive: %w", err)
		}
		if err := minioArchive.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare bucket: %w", err)
		}
		uploader = minioArchive
	case "azure":
		a := cfg.Archive.Azure
		azureArchive, err := upload.NewAzureArchive(a.AccountName, a.AccountKey, a.URL, a.Container)
		if err != nil {
			return nil, fmt.Errorf("failed to construct azure archive: %w", err)
		}
		if err := azureArchive.EnsureContainer(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare container: %w", err)
		}
		uploader = azureArchive
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}

	return transcript.NewArchiver(upload.NewRetryUploader(uploader), cfg.Archive.Prefix), nil
}
