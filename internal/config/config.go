package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/validator"
)

type PostgresConfig struct {
	// Only the worker connects, so credentials are checked when the pool is opened
	User               string
	Password           string
	Host               string        `validate:"required"`
	Database           string
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"     validate:"required"`
	Port     int    `mapstructure:"port"     validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AzureQueueConfig struct {
	AccountName string `mapstructure:"account_name" validate:"required"`
	AccountKey  string `mapstructure:"account_key"  validate:"required"`
	URL         string `mapstructure:"url"          validate:"required"`
	// Deliveries of one message before it is dropped unhandled, 5 when unset
	MaxDeliveries int64 `mapstructure:"max_deliveries" validate:"gte=0"`
}

type KafkaQueueConfig struct {
	Brokers []string `mapstructure:"brokers"  validate:"required,min=1"`
	GroupID string   `mapstructure:"group_id" validate:"required"`
}

type QueueConfig struct {
	Backend string `mapstructure:"backend"    validate:"required,oneof=redis azure kafka"`
	Name    string `mapstructure:"name"       validate:"required"`
	// How long an empty Azure queue is left alone before polling again
	EmptyWait time.Duration     `mapstructure:"empty_wait"`
	Azure     *AzureQueueConfig `mapstructure:"azure"      validate:"required_if=Backend azure"`
	Kafka     *KafkaQueueConfig `mapstructure:"kafka"      validate:"required_if=Backend kafka"`
}

type JudgeConfig struct {
	URL            string        `mapstructure:"url"             validate:"required,url"`
	AuthToken      string        `mapstructure:"auth_token"`
	PollInterval   time.Duration `mapstructure:"poll_interval"   validate:"required"`
	MaxWait        time.Duration `mapstructure:"max_wait"        validate:"required"`
	RetryMax       int           `mapstructure:"retry_max"       validate:"gte=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
}

type RelayRateLimitConfig struct {
	PerMinute int64 `mapstructure:"per_minute"`
	FailOpen  bool  `mapstructure:"fail_open"`
}

type RelayConfig struct {
	// How workers publish: websocket to the relay, straight to redis, or not at all
	Mode           string               `mapstructure:"mode"            validate:"required,oneof=websocket redis none"`
	URL            string               `mapstructure:"url"             validate:"required_if=Mode websocket"`
	ChannelPrefix  string               `mapstructure:"channel_prefix"  validate:"required"`
	ListenAddress  string               `mapstructure:"listen_address"  validate:"required"`
	AllowedOrigins []string             `mapstructure:"allowed_origins"`
	UseRedis       bool                 `mapstructure:"use_redis"`
	TLSCert        string               `mapstructure:"tls_cert"        validate:"required_with=TLSKey"`
	TLSKey         string               `mapstructure:"tls_key"         validate:"required_with=TLSCert"`
	RateLimit      RelayRateLimitConfig `mapstructure:"ratelimit"`
}

type MinioArchiveConfig struct {
	Endpoint        string `mapstructure:"endpoint"          validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	BucketName      string `mapstructure:"bucket_name"       validate:"required"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
}

type AzureArchiveConfig struct {
	AccountName string `mapstructure:"account_name" validate:"required"`
	AccountKey  string `mapstructure:"account_key"  validate:"required"`
	URL         string `mapstructure:"url"          validate:"required"`
	Container   string `mapstructure:"container"    validate:"required"`
}

type ArchiveConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Backend string              `mapstructure:"backend" validate:"required_if=Enabled true,omitempty,oneof=minio azure"`
	Prefix  string              `mapstructure:"prefix"`
	Minio   *MinioArchiveConfig `mapstructure:"minio"   validate:"required_if=Backend minio"`
	Azure   *AzureArchiveConfig `mapstructure:"azure"   validate:"required_if=Backend azure"`
}

type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency" validate:"required,min=1"`
	JobTimeout  time.Duration `mapstructure:"job_timeout" validate:"required"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
	Format  string        `mapstructure:"format"   validate:"oneof=json console"`
}

// See judge.yaml for an example config
type Config struct {
	Logging              *LoggingConfig  `mapstructure:"logging"                validate:"required"`
	Redis                *RedisConfig    `mapstructure:"redis"                  validate:"required"`
	Queue                *QueueConfig    `mapstructure:"queue"                  validate:"required"`
	Judge                *JudgeConfig    `mapstructure:"judge"                  validate:"required"`
	Relay                *RelayConfig    `mapstructure:"relay"                  validate:"required"`
	Postgres             *PostgresConfig `mapstructure:"postgres"               validate:"required"`
	Archive              *ArchiveConfig  `mapstructure:"archive"                validate:"required"`
	Worker               *WorkerConfig   `mapstructure:"worker"                 validate:"required"`
	GracefulShutdownSecs int64           `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel                string = "logging.app.level"
	ArchiveAzureAccountKey     string = "archive.azure.account_key" // #nosec
	ArchiveEnabled             string = "archive.enabled"
	ArchiveMinioAccessKeyID    string = "archive.minio.access_key_id"
	ArchiveMinioSecretKey      string = "archive.minio.secret_access_key" // #nosec
	ArchivePrefix              string = "archive.prefix"
	EnvPrefix                  string = "judge"
	GormLogLevel               string = "logging.gorm.level"
	GormTraceQueries           string = "logging.gorm.trace_queries"
	GracefulShutdownSecs       string = "graceful_shutdown_secs"
	JudgeAuthToken             string = "judge.auth_token" // #nosec
	JudgeMaxWait               string = "judge.max_wait"
	JudgePollInterval          string = "judge.poll_interval"
	JudgeRequestTimeout        string = "judge.request_timeout"
	JudgeRetryMax              string = "judge.retry_max"
	JudgeURL                   string = "judge.url"
	LogFormat                  string = "logging.format"
	PostgresConnectonTTL       string = "postgres.connection_ttl"
	PostgresDatabase           string = "postgres.database"
	PostgresHost               string = "postgres.host"
	PostgresMaxIdleConnections string = "postgres.max_idle_connections"
	PostgresMaxOpenConnections string = "postgres.max_open_connections"
	PostgresPassword           string = "postgres.password"
	PostgresPort               string = "postgres.port"
	PostgresUser               string = "postgres.user"
	QueueAzureAccountKey       string = "queue.azure.account_key" // #nosec
	QueueEmptyWait             string = "queue.empty_wait"
	QueueBackend               string = "queue.backend"
	QueueName                  string = "queue.name"
	RedisDB                    string = "redis.db"
	RedisHost                  string = "redis.host"
	RedisPassword              string = "redis.password"
	RedisPort                  string = "redis.port"
	RelayAllowedOrigins        string = "relay.allowed_origins"
	RelayChannelPrefix         string = "relay.channel_prefix"
	RelayListenAddress         string = "relay.listen_address"
	RelayMode                  string = "relay.mode"
	RelayRateLimitFailOpen     string = "relay.ratelimit.fail_open"
	RelayRateLimitPerMinute    string = "relay.ratelimit.per_minute"
	RelayURL                   string = "relay.url"
	RelayUseRedis              string = "relay.use_redis"
	UseOTLP                    string = "logging.use_otlp"
	WorkerConcurrency          string = "worker.concurrency"
	WorkerJobTimeout           string = "worker.job_timeout"
)

// Bound explicitly so they unmarshal into the nested struct when only set in the environment.
// workaround for https://github.com/spf13/viper/issues/761
var envBindings = []string{
	ArchiveAzureAccountKey,
	ArchiveMinioAccessKeyID,
	ArchiveMinioSecretKey,
	JudgeAuthToken,
	JudgeURL,
	PostgresDatabase,
	PostgresPassword,
	PostgresUser,
	QueueAzureAccountKey,
	RelayURL,
}

var configReady = false
var config Config

// GetConfig loads the config once per process.
func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	loaded, err := Read()
	if err != nil {
		return nil, err
	}

	config = *loaded
	configReady = true
	return &config, nil
}

// Read loads and validates the config without caching it.
//
// Values come from, lowest precedence first: defaults, judge.yaml, a .env file and the
// environment.
func Read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("judge")

	v.AddConfigPath("/etc/judge/")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	for _, key := range envBindings {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	// REDIS_PASSWORD is what existing deployments of the queue set
	if err := v.BindEnv(RedisPassword, "JUDGE_REDIS_PASSWORD", "REDIS_PASSWORD"); err != nil {
		return nil, err
	}

	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	valid := validator.Create()
	if err := valid.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(UseOTLP, false)
	v.SetDefault(LogFormat, logger.FormatJSON)

	v.SetDefault(RedisHost, "localhost")
	v.SetDefault(RedisPort, 6380)
	v.SetDefault(RedisDB, 0)

	v.SetDefault(QueueBackend, "redis")
	v.SetDefault(QueueName, "submissionProblem")
	v.SetDefault(QueueEmptyWait, 30*time.Second)

	v.SetDefault(JudgeURL, "http://localhost:2358")
	v.SetDefault(JudgePollInterval, time.Second)
	v.SetDefault(JudgeMaxWait, 2*time.Minute)
	v.SetDefault(JudgeRetryMax, 0)
	v.SetDefault(JudgeRequestTimeout, 30*time.Second)

	v.SetDefault(RelayMode, "websocket")
	v.SetDefault(RelayURL, "ws://localhost:41234/ws/")
	v.SetDefault(RelayChannelPrefix, "submission-room:")
	v.SetDefault(RelayListenAddress, "[::]:41234")
	v.SetDefault(RelayAllowedOrigins, []string{"*"})
	v.SetDefault(RelayUseRedis, false)
	v.SetDefault(RelayRateLimitPerMinute, 0)
	v.SetDefault(RelayRateLimitFailOpen, true)

	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConnections, 2)
	v.SetDefault(PostgresMaxOpenConnections, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)

	v.SetDefault(ArchiveEnabled, false)
	v.SetDefault(ArchivePrefix, "transcripts")

	v.SetDefault(WorkerConcurrency, 4)
	v.SetDefault(WorkerJobTimeout, 10*time.Minute)

	v.SetDefault(GracefulShutdownSecs, 30)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.Database),
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GracefulShutdown() time.Duration {
	return time.Duration(c.GracefulShutdownSecs) * time.Second
}
