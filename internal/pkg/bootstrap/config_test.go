package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Saga.Store != "memory" || cfg.Saga.MaxAge != 5*time.Minute {
		t.Fatalf("defaults = %+v", cfg.Saga)
	}
	if cfg.Infra.Kafka.DLTTopic != "saga-dlt" {
		t.Fatalf("dlt topic = %q", cfg.Infra.Kafka.DLTTopic)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saga.yaml")
	content := `
app:
  port: 9090
infra:
  kafka:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
saga:
  store: redis
  maxAge: 90s
  sweepSchedule: "@every 1s"
policy:
  customer: expr
  customerExpression: "totalAmount < 1000.0"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDRS", "redis-a:6379,redis-b:6379")
	t.Setenv("HTTP_PORT", "9191")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != 9191 {
		t.Fatalf("port = %d, env should win", cfg.App.Port)
	}
	if len(cfg.Infra.Kafka.Brokers) != 2 || cfg.Saga.Store != "redis" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Saga.MaxAge != 90*time.Second {
		t.Fatalf("maxAge = %v", cfg.Saga.MaxAge)
	}
	if cfg.Saga.Retention != 10*time.Minute {
		t.Fatalf("unset retention should keep default, got %v", cfg.Saga.Retention)
	}
	if cfg.Infra.Redis.Addrs != "redis-a:6379,redis-b:6379" {
		t.Fatalf("redis addrs = %q", cfg.Infra.Redis.Addrs)
	}
	if cfg.Policy.CustomerExpression != "totalAmount < 1000.0" {
		t.Fatalf("policy = %+v", cfg.Policy)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad store", map[string]string{"SAGA_STORE": "etcd"}, "saga.store"},
		{"bad port", map[string]string{"HTTP_PORT": "abc"}, "HTTP_PORT"},
		{"bad inventory policy", map[string]string{"INVENTORY_POLICY": "oracle"}, "policy.inventory"},
		{"bad dsn", map[string]string{"MYSQL_DSN": "root@tcp(localhost:3306"}, "infra.mysql.dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
