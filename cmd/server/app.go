package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	audithandler "claimdesk/internal/audit"
	claimhandler "claimdesk/internal/claims/handler"
	claimmetrics "claimdesk/internal/claims/metrics"
	claimservice "claimdesk/internal/claims/service"
	claimstore "claimdesk/internal/claims/store/claim"
	httpapi "claimdesk/internal/http"
	identityhandler "claimdesk/internal/identity/handler"
	identityservice "claimdesk/internal/identity/service"
	userstore "claimdesk/internal/identity/store/user"
	"claimdesk/internal/jwttoken"
	"claimdesk/internal/notify"
	"claimdesk/internal/platform/config"
	"claimdesk/internal/platform/filestore"
	"claimdesk/internal/platform/kafka"
	"claimdesk/internal/platform/metrics"
	"claimdesk/internal/platform/postgres"
	"claimdesk/internal/platform/redis"
	policyhandler "claimdesk/internal/policies/handler"
	policyservice "claimdesk/internal/policies/service"
	policystore "claimdesk/internal/policies/store/policy"
	tenanthandler "claimdesk/internal/tenant/handler"
	tenantmetrics "claimdesk/internal/tenant/metrics"
	tenantservice "claimdesk/internal/tenant/service"
	"claimdesk/internal/tenant/store/cache"
	"claimdesk/internal/tenant/store/partition"
	"claimdesk/internal/tenant/store/registration"
	tenantstore "claimdesk/internal/tenant/store/tenant"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/audit/publisher"
	auditmemory "claimdesk/pkg/platform/audit/store/memory"
	auditpostgres "claimdesk/pkg/platform/audit/store/postgres"
	"claimdesk/pkg/platform/tx"
	"claimdesk/pkg/secrets"
)

const (
	auditBuffer      = 1024
	topicPartitions  = 3
	topicReplication = 1
	jwtAudience      = "claimdesk-api"
)

// app is the assembled service graph.
type app struct {
	handler     http.Handler
	provisioner *tenantservice.Provisioner
	closers     []func()
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores groups the persistence layer of one run mode.
type stores struct {
	users         identityservice.UserStore
	releaser      identityservice.AssigneeReleaser
	claims        claimservice.ClaimStore
	policies      policyservice.PolicyStore
	tenants       tenantservice.TenantStore
	registrations tenantservice.RegistrationStore
	partitions    tenantservice.PartitionManager
	admins        tenantservice.AdminStore
	audit         audit.Store
	tx            tx.Runner
}

func memoryStores() stores {
	users := userstore.New()
	claims := claimstore.NewInMemory()
	policies := policystore.NewInMemory()
	return stores{
		users:         users,
		releaser:      claims,
		claims:        claims,
		policies:      policies,
		tenants:       tenantstore.NewInMemory(),
		registrations: registration.NewInMemory(),
		partitions:    partition.NewInMemory(users, claims, policies),
		admins:        users,
		audit:         auditmemory.NewInMemoryStore(),
		tx:            tx.NewLockRunner(),
	}
}

func postgresStores(db *sql.DB) stores {
	users := userstore.NewPostgres(db)
	claims := claimstore.NewPostgres(db)
	return stores{
		users:         users,
		releaser:      claims,
		claims:        claims,
		policies:      policystore.NewPostgres(db),
		tenants:       tenantstore.NewPostgres(db),
		registrations: registration.NewPostgres(db),
		partitions:    partition.NewPostgres(db),
		admins:        users,
		audit:         auditpostgres.New(db),
		tx:            tx.NewPostgresRunner(db),
	}
}

// buildApp wires stores, services and handlers for cfg. Without a database
// URL everything runs in memory.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{}
	checks := map[string]httpapi.Check{}

	var st stores
	if cfg.DemoMode() {
		logger.Warn("database.url not set: running with in-memory stores")
		st = memoryStores()
	} else {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		checks["postgres"] = db.PingContext
		st = postgresStores(db)
	}

	tenantOpts := []tenantservice.Option{
		tenantservice.WithLogger(logger),
		tenantservice.WithMetrics(tenantmetrics.NewWithRegistry(reg)),
		tenantservice.WithTxRunner(st.tx),
		tenantservice.WithDomainSuffix(cfg.Tenancy.DomainSuffix),
		tenantservice.WithMaxAttempts(cfg.Tenancy.ProvisionAttempts),
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = redisClient.Health
		domainCache := cache.NewRedis(redisClient.Client, cache.WithTTL(cfg.Redis.DomainTTL))
		tenantOpts = append(tenantOpts, tenantservice.WithDomainCache(domainCache))
	}

	var notifier claimservice.Notifier = notify.NewLogNotifier(logger)
	var claimOpts []claimservice.Option
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		if err := producer.EnsureTopics(ctx, topicPartitions, topicReplication,
			cfg.Kafka.NotificationsTopic, cfg.Kafka.ClaimEventsTopic); err != nil {
			logger.Warn("could not ensure kafka topics", "error", err)
		}
		notifier = notify.NewKafkaNotifier(producer, cfg.Kafka.NotificationsTopic)
		claimOpts = append(claimOpts, claimservice.WithEventPublisher(producer, cfg.Kafka.ClaimEventsTopic))
	}

	auditPublisher := publisher.NewPublisher(st.audit,
		publisher.WithLogger(logger),
		publisher.WithAsyncBuffer(auditBuffer),
	)
	a.closers = append(a.closers, auditPublisher.Close)

	files, err := filestore.NewLocal(cfg.Files.Root)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open document store: %w", err)
	}

	hasher := secrets.Hasher{Cost: bcrypt.DefaultCost}
	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, jwtAudience)

	tenantOpts = append(tenantOpts,
		tenantservice.WithAuditPublisher(auditPublisher),
		tenantservice.WithNotifier(notifier),
	)
	a.provisioner = tenantservice.NewProvisioner(st.tenants, st.registrations, st.partitions, st.admins, hasher, tenantOpts...)
	registry := tenantservice.NewRegistry(st.tenants, tenantOpts...)

	identity := identityservice.New(st.users, st.releaser, hasher, tokens,
		identityservice.WithLogger(logger),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithTxRunner(st.tx),
		identityservice.WithTokenTTL(cfg.Auth.TokenTTL),
	)
	policies := policyservice.New(st.policies, st.claims,
		policyservice.WithLogger(logger),
		policyservice.WithAuditPublisher(auditPublisher),
	)
	claimOpts = append(claimOpts,
		claimservice.WithLogger(logger),
		claimservice.WithAuditPublisher(auditPublisher),
		claimservice.WithMetrics(claimmetrics.NewWithRegistry(reg)),
		claimservice.WithNotifier(notifier),
		claimservice.WithNumberAttempts(cfg.Claims.NumberAttempts),
		claimservice.WithTxRunner(st.tx),
	)
	claims := claimservice.New(st.claims, st.policies, st.users, files, claimOpts...)

	a.handler = httpapi.NewRouter(httpapi.Deps{
		Logger:       logger,
		Metrics:      metrics.NewWithRegistry(reg),
		Resolver:     registry,
		PlatformHost: cfg.Tenancy.PlatformHost,
		Tokens:       jwttoken.NewJWTServiceAdapter(tokens),
		BootstrapKey: cfg.BootstrapKey,
		Checks:       checks,
	}, httpapi.Handlers{
		Tenant:   tenanthandler.New(a.provisioner, logger),
		Identity: identityhandler.New(identity, logger, identityhandler.WithTenantRefs(registry)),
		Policies: policyhandler.New(policies, logger),
		Claims:   claimhandler.New(claims, logger),
		Audit:    audithandler.NewHandler(st.audit, logger),
	})
	return a, nil
}
