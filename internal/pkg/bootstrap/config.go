// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config is the configuration shared by every saga service. Each binary reads
// only the sections it needs.
type Config struct {
	App    AppConfig    `yaml:"app"`
	Infra  InfraConfig  `yaml:"infra"`
	Saga   SagaConfig   `yaml:"saga"`
	Policy PolicyConfig `yaml:"policy"`
}

type AppConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

type InfraConfig struct {
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	DLTTopic string   `yaml:"dltTopic"`
}

type RedisConfig struct {
	Addrs    string `yaml:"addrs"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type ZookeeperConfig struct {
	Servers []string `yaml:"servers"`
}

// SagaConfig tunes the correlation store and its sweeper.
type SagaConfig struct {
	// Store is "memory" or "redis".
	Store        string        `yaml:"store"`
	Shards       int           `yaml:"shards"`
	MaxAge       time.Duration `yaml:"maxAge"`
	Retention    time.Duration `yaml:"retention"`
	TombstoneTTL time.Duration `yaml:"tombstoneTTL"`
	// PaymentRetryAfter is how long a joined saga waits for its payment
	// acknowledgement before the payment is triggered again.
	PaymentRetryAfter time.Duration `yaml:"paymentRetryAfter"`
	SweepSchedule     string        `yaml:"sweepSchedule"`
	// ClaimTTL bounds how long a validation attempt holds its claim.
	ClaimTTL  time.Duration `yaml:"claimTTL"`
	DedupeTTL time.Duration `yaml:"dedupeTTL"`
}

// PolicyConfig selects the validator decision policies.
type PolicyConfig struct {
	// Customer is "always", "http" or "expr".
	Customer           string `yaml:"customer"`
	CustomerExpression string `yaml:"customerExpression"`
	CustomerURL        string `yaml:"customerURL"`
	// Inventory is "always", "stock" or "expr".
	Inventory           string `yaml:"inventory"`
	InventoryExpression string `yaml:"inventoryExpression"`
}

// DefaultConfig returns a configuration that runs against local infrastructure.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Port: 8080, LogLevel: "info"},
		Infra: InfraConfig{
			Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}, DLTTopic: "saga-dlt"},
			Redis: RedisConfig{Addrs: "localhost:6379"},
		},
		Saga: SagaConfig{
			Store:             "memory",
			Shards:            32,
			MaxAge:            5 * time.Minute,
			Retention:         10 * time.Minute,
			TombstoneTTL:      24 * time.Hour,
			PaymentRetryAfter: time.Minute,
			SweepSchedule:     "@every 5s",
			ClaimTTL:          30 * time.Second,
			DedupeTTL:         24 * time.Hour,
		},
		Policy: PolicyConfig{Customer: "always", Inventory: "always"},
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.Infra.Kafka.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("REDIS_ADDRS"); ok {
		c.Infra.Redis.Addrs = v
	}
	if v, ok := os.LookupEnv("MYSQL_DSN"); ok {
		c.Infra.MySQL.DSN = v
	}
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		c.Infra.Jaeger.Endpoint = v
	}
	if v, ok := os.LookupEnv("ZOOKEEPER_SERVERS"); ok {
		c.Infra.Zookeeper.Servers = splitList(v)
	}
	if v, ok := os.LookupEnv("SAGA_STORE"); ok {
		c.Saga.Store = v
	}
	if v, ok := os.LookupEnv("CUSTOMER_POLICY"); ok {
		c.Policy.Customer = v
	}
	if v, ok := os.LookupEnv("INVENTORY_POLICY"); ok {
		c.Policy.Inventory = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := os.LookupEnv("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.App.Port = port
	}
	return nil
}

// Validate rejects configurations no service could run with.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	switch c.Saga.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("saga.store %q must be memory or redis", c.Saga.Store))
	}
	if c.Saga.MaxAge <= 0 || c.Saga.Retention <= 0 || c.Saga.TombstoneTTL <= 0 ||
		c.Saga.PaymentRetryAfter <= 0 || c.Saga.ClaimTTL <= 0 {
		errs = append(errs, errors.New("saga durations must be positive"))
	}
	if c.Saga.Shards <= 0 {
		errs = append(errs, errors.New("saga.shards must be positive"))
	}
	switch c.Policy.Customer {
	case "always", "expr", "http":
	default:
		errs = append(errs, fmt.Errorf("policy.customer %q must be always, expr or http", c.Policy.Customer))
	}
	switch c.Policy.Inventory {
	case "always", "expr", "stock":
	default:
		errs = append(errs, fmt.Errorf("policy.inventory %q must be always, expr or stock", c.Policy.Inventory))
	}
	if c.Infra.MySQL.DSN != "" {
		if _, err := mysqldrv.ParseDSN(c.Infra.MySQL.DSN); err != nil {
			errs = append(errs, fmt.Errorf("infra.mysql.dsn: %w", err))
		}
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnv reads an environment variable with a fallback.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
