package bootstrap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	chclient "meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/config"
	errnoop "meridian/internal/adapters/errors/noop"
	"meridian/internal/adapters/errors/sentry"
	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	"meridian/internal/adapters/ledger/rpc"
	pgclient "meridian/internal/adapters/postgres"
	redisclient "meridian/internal/adapters/redis"
	"meridian/internal/api"
	"meridian/internal/api/health"
	"meridian/internal/consumers"
	"meridian/internal/events"
	"meridian/internal/metrics"
	pgrepo "meridian/internal/repository/postgres"
	redisrepo "meridian/internal/repository/redis"
	fundservice "meridian/internal/services/fund"
	investmentservice "meridian/internal/services/investment"
	kycservice "meridian/internal/services/kyc"
	"meridian/internal/workers"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

const version = "1.0.0"

// balanceCacheTTL bounds staleness of cached on-chain balances between
// reconciler sweeps
const balanceCacheTTL = 15 * time.Minute

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes the logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Register()
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the data stores
func (c *Container) MustInitInfrastructure() {
	var err error

	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}

	c.Log.Info("Connecting to ClickHouse...")
	c.CH, err = chclient.NewClient(c.Config.ClickHouse)
	if err != nil {
		c.Log.Fatalf("failed to connect clickhouse: %v", err)
	}

	c.Log.Info("Connecting to Redis...")
	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}

	c.Log.Info("Data stores connected")
}

// ========================================
// Phase 3: Ledger
// ========================================

// MustInitLedger wires the JSON-RPC client and the gateway. Gateway
// initialization itself is deferred to Start and is allowed to fail.
func (c *Container) MustInitLedger() {
	c.LedgerClient = rpc.NewClient(c.Config.Ledger)
	c.Gateway = ledger.NewGateway(c.LedgerClient, c.Config.Ledger)
	c.Log.Infow("Ledger gateway configured",
		"rpc_url", c.Config.Ledger.RPCURL,
		"ws_url", c.Config.Ledger.WSURL,
	)
}

// ========================================
// Phase 4: Repositories
// ========================================

// MustInitRepositories wires the persistence layer
func (c *Container) MustInitRepositories() {
	db := c.PG.DB()
	c.Repos.User = pgrepo.NewUserRepository(db)
	c.Repos.Fund = pgrepo.NewFundRepository(db)
	c.Repos.Investment = pgrepo.NewInvestmentRepository(db)
	c.Repos.Identity = pgrepo.NewIdentityRepository(db)
	c.Repos.Balances = redisrepo.NewBalanceCache(c.Redis, balanceCacheTTL)

	prometheus.MustRegister(metrics.NewEntityCollector(c.Log, db))
}

// ========================================
// Phase 5: Messaging Adapters
// ========================================

// MustInitAdapters wires kafka producers and consumers
func (c *Container) MustInitAdapters() {
	kcfg := c.Config.Kafka

	c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers: kcfg.Brokers,
	})
	c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer, c.Log)

	newConsumer := func(topic, group string) *kafka.Consumer {
		return kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: kcfg.Brokers,
			GroupID: group,
			Topic:   topic,
		})
	}

	c.Adapters.IdentityEventsConsumer = newConsumer(kafka.TopicLedgerIdentityEvents, kcfg.GroupID)
	c.Adapters.FundEventsConsumer = newConsumer(kafka.TopicLedgerFundEvents, kcfg.GroupID)
	c.Adapters.InvestmentEventsConsumer = newConsumer(kafka.TopicLedgerInvestmentEvents, kcfg.GroupID)

	// The audit trail reads the same topics under its own group so audit
	// writes never compete with the folding consumers
	auditGroup := kcfg.GroupID + "-audit"
	for _, topic := range []string{
		kafka.TopicLedgerIdentityEvents,
		kafka.TopicLedgerFundEvents,
		kafka.TopicLedgerInvestmentEvents,
	} {
		c.Adapters.AuditConsumers = append(c.Adapters.AuditConsumers, newConsumer(topic, auditGroup))
	}
}

// ========================================
// Phase 6: Services
// ========================================

// MustInitServices wires the workflow services
func (c *Container) MustInitServices() {
	c.Services.KYC = kycservice.NewService(
		c.Repos.Identity,
		c.Repos.User,
		c.Gateway,
		c.Adapters.Publisher,
		c.Log,
	)
	c.Services.Fund = fundservice.NewService(
		c.Repos.Fund,
		c.Repos.Investment,
		c.Repos.User,
		c.Gateway,
		c.Adapters.Publisher,
		c.Log,
	)
	c.Services.Investment = investmentservice.NewService(
		c.Repos.Investment,
		c.Repos.Fund,
		c.Repos.User,
		c.Repos.Identity,
		c.Gateway,
		c.Adapters.Publisher,
		c.Log,
	)
}

// ========================================
// Phase 7: Application Layer
// ========================================

// MustInitApplication wires the ops HTTP server
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = health.New(
		c.Log,
		c.PG,
		c.CH,
		c.Redis,
		c.Gateway,
		c.Config.App.Name,
		version,
	)
	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        c.Config.API.Port,
		ServiceName: c.Config.App.Name,
		Version:     version,
	}, c.Application.HealthHandler, c.Log)
}

// ========================================
// Phase 8: Background Processing
// ========================================

// MustInitBackground wires consumers and workers
func (c *Container) MustInitBackground() {
	for _, stream := range []string{
		ledger.StreamIdentity,
		ledger.StreamFund,
		ledger.StreamInvestment,
	} {
		c.Background.StreamConsumers = append(c.Background.StreamConsumers,
			consumers.NewLedgerStreamConsumer(c.Gateway, c.Adapters.KafkaProducer, stream, c.Log))
	}

	c.Background.IdentitySvc = consumers.NewIdentityEventsConsumer(
		c.Adapters.IdentityEventsConsumer,
		c.Repos.User,
		c.Repos.Identity,
		c.Log,
	)
	c.Background.FundSvc = consumers.NewFundEventsConsumer(
		c.Adapters.FundEventsConsumer,
		c.Repos.Fund,
		c.Log,
	)
	c.Background.InvestmentSvc = consumers.NewInvestmentEventsConsumer(
		c.Adapters.InvestmentEventsConsumer,
		c.Repos.Investment,
		c.Repos.Fund,
		c.Repos.Balances,
		c.Log,
	)
	for _, consumer := range c.Adapters.AuditConsumers {
		c.Background.AuditSvcs = append(c.Background.AuditSvcs,
			consumers.NewAuditConsumer(consumer, c.CH, c.Log))
	}

	c.Background.WorkerScheduler = workers.NewScheduler()
	c.registerWorkers()
}
