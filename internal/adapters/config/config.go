package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"meridian/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	Ledger        LedgerConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
	API           APIConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"meridian"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"meridian"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"meridian"`
}

// LedgerConfig describes the single ledger node the platform talks to and
// the deployed contract identities the gateway binds to at initialization.
type LedgerConfig struct {
	RPCURL string `envconfig:"LEDGER_RPC_URL" required:"true"`
	WSURL  string `envconfig:"LEDGER_WS_URL" required:"true"`

	// Operator signing identity (funds deploys, mints, claim issuance)
	OperatorAddress string `envconfig:"LEDGER_OPERATOR_ADDRESS" required:"true"`
	OperatorKeyRef  string `envconfig:"LEDGER_OPERATOR_KEY_REF" required:"true"`

	// Deployed contract addresses
	IdentityRegistryAddress string        `envconfig:"LEDGER_IDENTITY_REGISTRY_ADDRESS"`
	FundFactoryAddress      string        `envconfig:"LEDGER_FUND_FACTORY_ADDRESS"`
	InvestmentLedgerAddress string        `envconfig:"LEDGER_INVESTMENT_LEDGER_ADDRESS"`
	DefaultFundTokenAddress string        `envconfig:"LEDGER_DEFAULT_FUND_TOKEN_ADDRESS"`
	DefaultCountryCode      int           `envconfig:"LEDGER_DEFAULT_COUNTRY_CODE" default:"840"`
	RequestTimeout          time.Duration `envconfig:"LEDGER_REQUEST_TIMEOUT" default:"30s"`
	InclusionTimeout        time.Duration `envconfig:"LEDGER_INCLUSION_TIMEOUT" default:"120s"`
	RequestsPerMinute       int           `envconfig:"LEDGER_REQUESTS_PER_MINUTE" default:"300"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals and switches for background workers
type WorkerConfig struct {
	// KYC review worker: scheduled adjudication sweep. In demo mode it
	// auto-approves submitted records older than the review delay, which
	// replaces the in-process approval timer that would not survive restarts.
	KYCReviewInterval time.Duration `envconfig:"WORKER_KYC_REVIEW_INTERVAL" default:"1m"`
	KYCReviewDelay    time.Duration `envconfig:"WORKER_KYC_REVIEW_DELAY" default:"5m"`
	KYCAutoApprove    bool          `envconfig:"WORKER_KYC_AUTO_APPROVE" default:"false"`
	KYCReviewEnabled  bool          `envconfig:"WORKER_KYC_REVIEW_ENABLED" default:"true"`

	// Ledger reconciler: re-drives unsynced records and refreshes balances
	ReconcileInterval time.Duration `envconfig:"WORKER_RECONCILE_INTERVAL" default:"5m"`
	ReconcileEnabled  bool          `envconfig:"WORKER_RECONCILE_ENABLED" default:"true"`
	ReconcileBatch    int           `envconfig:"WORKER_RECONCILE_BATCH" default:"50"`
}

type APIConfig struct {
	Host string `envconfig:"API_HOST" default:"0.0.0.0"`
	Port int    `envconfig:"API_PORT" default:"8080"`
}

func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from the environment, loading .env in development
func Load() (*Config, error) {
	// .env is optional; production supplies real env vars
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}

	return &cfg, nil
}
