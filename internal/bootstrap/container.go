package bootstrap

import (
	"context"
	"strconv"
	"sync"

	chclient "meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/config"
	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	pgclient "meridian/internal/adapters/postgres"
	redisclient "meridian/internal/adapters/redis"
	"meridian/internal/api"
	"meridian/internal/api/health"
	"meridian/internal/consumers"
	"meridian/internal/domain/fund"
	"meridian/internal/domain/identity"
	"meridian/internal/domain/investment"
	"meridian/internal/domain/user"
	"meridian/internal/events"
	redisrepo "meridian/internal/repository/redis"
	fundservice "meridian/internal/services/fund"
	investmentservice "meridian/internal/services/investment"
	kycservice "meridian/internal/services/kyc"
	"meridian/internal/workers"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure layer
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	// Ledger
	LedgerClient ledger.Client
	Gateway      *ledger.Gateway

	Repos       *Repositories
	Services    *Services
	Adapters    *Adapters
	Application *Application
	Background  *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	User       user.Repository
	Fund       fund.Repository
	Investment investment.Repository
	Identity   identity.Repository
	Balances   *redisrepo.BalanceCache
}

// Services groups all domain services
type Services struct {
	Fund       *fundservice.Service
	Investment *investmentservice.Service
	KYC        *kycservice.Service
}

// Adapters groups the messaging adapters
type Adapters struct {
	KafkaProducer *kafka.Producer
	Publisher     *events.Publisher

	IdentityEventsConsumer   *kafka.Consumer
	FundEventsConsumer       *kafka.Consumer
	InvestmentEventsConsumer *kafka.Consumer
	AuditConsumers           []*kafka.Consumer
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler

	// Stage 1: ledger websocket → kafka
	StreamConsumers []*consumers.LedgerStreamConsumer

	// Stage 2: kafka → store
	IdentitySvc   *consumers.IdentityEventsConsumer
	FundSvc       *consumers.FundEventsConsumer
	InvestmentSvc *consumers.InvestmentEventsConsumer
	AuditSvcs     []*consumers.AuditConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Services:    &Services{},
		Adapters:    &Adapters{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in dependency order.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitLedger()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// Soft-fail: an unreachable ledger leaves the gateway lazy, workflows
	// report SERVICE_UNAVAILABLE until it comes back
	if err := c.Gateway.Initialize(c.Context); err != nil {
		c.Log.Warnw("Ledger gateway not ready at startup", "error", err)
	}

	if err := c.startStreamConsumers(); err != nil {
		return err
	}
	if err := c.startKafkaConsumers(); err != nil {
		return err
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel()
		}
	}()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Info("All systems operational")
	return nil
}

// startStreamConsumers starts the websocket → kafka bridge tasks
func (c *Container) startStreamConsumers() error {
	for _, sc := range c.Background.StreamConsumers {
		sc := sc
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := sc.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw("Ledger stream consumer failed", "error", err)
			}
		}()
	}
	c.Log.Infow("Ledger stream consumers started", "count", len(c.Background.StreamConsumers))
	return nil
}

// startKafkaConsumers starts the kafka → store consumers
func (c *Container) startKafkaConsumers() error {
	svcs := []struct {
		name string
		svc  interface{ Start(context.Context) error }
	}{
		{"identity_events", c.Background.IdentitySvc},
		{"fund_events", c.Background.FundSvc},
		{"investment_events", c.Background.InvestmentSvc},
	}
	for _, audit := range c.Background.AuditSvcs {
		svcs = append(svcs, struct {
			name string
			svc  interface{ Start(context.Context) error }
		}{"audit", audit})
	}

	c.WG.Add(len(svcs))
	for _, entry := range svcs {
		name, svc := entry.name, entry.svc
		go func() {
			defer c.WG.Done()
			if err := svc.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw(name+" consumer failed", "error", err)
			}
		}()
	}

	c.Log.Infow("Event consumers started", "count", len(svcs))
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to stop stream consumers first so no
	// new events reach kafka during teardown
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Background.WorkerScheduler,
		c.Adapters.KafkaProducer,
		c.allKafkaConsumers(),
		c.Gateway,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

func (c *Container) allKafkaConsumers() map[string]*kafka.Consumer {
	all := map[string]*kafka.Consumer{
		"identity_events":   c.Adapters.IdentityEventsConsumer,
		"fund_events":       c.Adapters.FundEventsConsumer,
		"investment_events": c.Adapters.InvestmentEventsConsumer,
	}
	for i, audit := range c.Adapters.AuditConsumers {
		all["audit_"+strconv.Itoa(i)] = audit
	}
	return all
}
