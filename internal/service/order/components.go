// Package order assembles the saga services from configuration. Every
// binary under cmd/ builds its dependencies through Components.
package order

import (
	"context"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"ordersaga/internal/pkg/bootstrap"
	"ordersaga/internal/pkg/httpclient"
	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/pkg/mq"
	"ordersaga/internal/pkg/redis"
	"ordersaga/internal/pkg/zookeeper"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/application/saga"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
	"ordersaga/internal/service/order/infrastructure"
	"ordersaga/internal/service/order/infrastructure/adapter"
	"ordersaga/internal/service/order/infrastructure/rule"
	"ordersaga/internal/service/order/interfaces"
)

// Components lazily builds and owns the infrastructure clients of one service.
type Components struct {
	ServiceName string
	Config      *bootstrap.Config
	Tracer      trace.Tracer
	Metrics     *metrics.Metrics

	redis   *redis.Client
	writer  *kafka.Writer
	db      *gorm.DB
	zk      *zk.Conn
	closers []func() error
}

func NewComponents(serviceName string, cfg *bootstrap.Config) *Components {
	return &Components{
		ServiceName: serviceName,
		Config:      cfg,
		Tracer:      otel.Tracer(serviceName),
		Metrics:     metrics.NewDefault(),
	}
}

func (c *Components) Redis() (*redis.Client, error) {
	if c.redis != nil {
		return c.redis, nil
	}
	r := c.Config.Infra.Redis
	client, err := redis.NewClient(r.Addrs, r.Password, r.DB)
	if err != nil {
		return nil, err
	}
	c.redis = client
	c.closers = append(c.closers, client.Close)
	return client, nil
}

func (c *Components) kafkaWriter() *kafka.Writer {
	if c.writer == nil {
		c.writer = mq.NewKafkaWriter(c.Config.Infra.Kafka.Brokers, "")
		c.closers = append(c.closers, c.writer.Close)
	}
	return c.writer
}

// Publisher publishes saga events to Kafka.
func (c *Components) Publisher() port.Publisher {
	return infrastructure.NewKafkaPublisher(c.kafkaWriter(), c.Tracer)
}

// Consumer reads topics in the given consumer group and dead-letters what h
// cannot handle.
func (c *Components) Consumer(group string, h interfaces.EventHandler, topics ...string) *mq.Consumer {
	reader := mq.NewKafkaReader(c.Config.Infra.Kafka.Brokers, group, topics...)
	failures := interfaces.NewDeadLetterRouter(c.kafkaWriter(), c.Config.Infra.Kafka.DLTTopic, c.Metrics)
	return mq.NewConsumer(group, reader, interfaces.NewMessageHandler(group, h, c.Metrics), failures)
}

// DeadLetterConsumer logs everything on the dead-letter topic.
func (c *Components) DeadLetterConsumer(group string) *mq.Consumer {
	reader := mq.NewKafkaReader(c.Config.Infra.Kafka.Brokers, group, c.Config.Infra.Kafka.DLTTopic)
	return mq.NewConsumer(group, reader, interfaces.NewDeadLetterHandler(), nil)
}

// Deduplicator is shared through Redis when the saga state is.
func (c *Components) Deduplicator() (port.Deduplicator, error) {
	if c.Config.Saga.Store != "redis" {
		return infrastructure.NewMemoryDeduplicator(c.Config.Saga.ClaimTTL, c.Config.Saga.DedupeTTL), nil
	}
	client, err := c.Redis()
	if err != nil {
		return nil, err
	}
	return infrastructure.NewRedisDeduplicator(client, c.Config.Saga.ClaimTTL, c.Config.Saga.DedupeTTL)
}

func (c *Components) CustomerPolicy() (port.ValidationPolicy, error) {
	p := c.Config.Policy
	switch p.Customer {
	case "expr":
		return rule.NewExpressionPolicy(p.CustomerExpression)
	case "http":
		if p.CustomerURL == "" {
			return nil, errors.New("policy.customerURL is required for the http customer policy")
		}
		return adapter.NewCustomerHTTPAdapter(httpclient.NewClient(c.Tracer), p.CustomerURL), nil
	default:
		return application.AlwaysApprove, nil
	}
}

func (c *Components) InventoryPolicy() (port.ValidationPolicy, error) {
	p := c.Config.Policy
	switch p.Inventory {
	case "expr":
		return rule.NewExpressionPolicy(p.InventoryExpression)
	case "stock":
		client, err := c.Redis()
		if err != nil {
			return nil, err
		}
		return infrastructure.NewRedisStockPolicy(client, c.Config.Saga.DedupeTTL)
	default:
		return application.AlwaysApprove, nil
	}
}

func (c *Components) CorrelationStore() (port.CorrelationStore, error) {
	s := c.Config.Saga
	if s.Store != "redis" {
		return saga.NewMemoryStore(saga.StoreConfig{
			Shards:            s.Shards,
			MaxAge:            s.MaxAge,
			Retention:         s.Retention,
			TombstoneTTL:      s.TombstoneTTL,
			PaymentRetryAfter: s.PaymentRetryAfter,
		}), nil
	}
	client, err := c.Redis()
	if err != nil {
		return nil, err
	}
	return infrastructure.NewRedisCorrelationStore(client, s.MaxAge, s.Retention, s.TombstoneTTL, s.PaymentRetryAfter)
}

// Locker elects the sweeping replica: ZooKeeper when configured, otherwise
// Redis for a shared store. A process-local store needs no lock.
func (c *Components) Locker() (port.Locker, error) {
	if servers := c.Config.Infra.Zookeeper.Servers; len(servers) > 0 {
		if c.zk == nil {
			conn, err := zookeeper.Connect(servers, 10*time.Second)
			if err != nil {
				return nil, err
			}
			c.zk = conn
			c.closers = append(c.closers, func() error { conn.Close(); return nil })
		}
		return zookeeper.NewLocker(c.zk), nil
	}
	if c.Config.Saga.Store != "redis" {
		return nil, nil
	}
	client, err := c.Redis()
	if err != nil {
		return nil, err
	}
	return infrastructure.NewRedisLocker(client)
}

// OrderRepository is MySQL when a DSN is configured, in-memory otherwise.
func (c *Components) OrderRepository() (domain.OrderRepository, error) {
	if c.Config.Infra.MySQL.DSN == "" {
		return infrastructure.NewMemoryOrderRepository(), nil
	}
	if c.db == nil {
		db, err := infrastructure.OpenMySQL(c.Config.Infra.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		c.db = db
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, sqlDB.Close)
		}
	}
	return infrastructure.NewGormOrderRepository(c.db), nil
}

// Close releases every client in reverse order of creation.
func (c *Components) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to close component")
		}
	}
	c.closers = nil
}

// Must aborts startup on a wiring error.
func Must[T any](v T, err error) T {
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to build service dependencies")
	}
	return v
}
