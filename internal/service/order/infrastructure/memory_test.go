package infrastructure

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

func TestMemoryOrderRepository(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	o := confirmedOrder(t)

	created, err := repo.Save(ctx, o)
	if err != nil || !created {
		t.Fatalf("save = %v, %v", created, err)
	}
	if created, _ := repo.Save(ctx, o); created {
		t.Fatal("duplicate save created a row")
	}
	got, err := repo.FindByID(ctx, "o1")
	if err != nil || got.State != domain.StateConfirmed {
		t.Fatalf("find = %+v, %v", got, err)
	}
	got.Snapshot.ProductIDs[0] = "mutated"
	again, _ := repo.FindByID(ctx, "o1")
	if again.Snapshot.ProductIDs[0] != "p1" {
		t.Fatal("repository leaked internal state")
	}
	if _, err := repo.FindByID(ctx, "nope"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("err = %v", err)
	}
}

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_RoutesByKind(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, otel.Tracer("test"))
	events := []domain.Event{
		domain.OrderPlaced{OrderID: "o1", CustomerID: "c1", ProductIDs: []string{"p1"}},
		domain.CustomerFailed{OrderID: "o1"},
		domain.InventoryReserved{OrderID: "o1", Reserved: true},
	}
	for _, ev := range events {
		if err := p.Publish(context.Background(), ev); err != nil {
			t.Fatalf("publish %s: %v", ev.Kind(), err)
		}
	}
	if len(w.msgs) != 3 {
		t.Fatalf("wrote %d messages", len(w.msgs))
	}
	for i, msg := range w.msgs {
		if msg.Topic != events[i].Kind().Topic() || string(msg.Key) != "o1" {
			t.Fatalf("message %d: topic=%s key=%s", i, msg.Topic, msg.Key)
		}
		ev, env, err := domain.DecodeEvent(msg.Value)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Kind() != events[i].Kind() || env.EventID == "" {
			t.Fatalf("decoded %s, envelope %+v", ev.Kind(), env)
		}
	}
}

func TestMemoryBus_DeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	var mu sync.Mutex
	got := map[string][]string{}
	record := func(name string) func(context.Context, kafka.Message) error {
		return func(_ context.Context, msg kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], msg.Topic)
			return nil
		}
	}
	bus.Subscribe("customer", record("customer"), nil, domain.TopicOrderPlaced)
	bus.Subscribe("inventory", record("inventory"), nil, domain.TopicOrderPlaced, domain.TopicCustomerFailed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	if err := bus.Publish(ctx, domain.OrderPlaced{OrderID: "o1", CustomerID: "c1", ProductIDs: []string{"p1"}}); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(ctx, domain.CustomerFailed{OrderID: "o1"}); err != nil {
		t.Fatal(err)
	}
	drainCtx, done := context.WithTimeout(ctx, 2*time.Second)
	defer done()
	if err := bus.Drain(drainCtx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got["customer"]) != 1 || len(got["inventory"]) != 2 {
		t.Fatalf("deliveries = %v", got)
	}
}

func TestMemoryBus_ReportsHandlerErrors(t *testing.T) {
	bus := NewMemoryBus()
	failed := make(chan error, 1)
	bus.Subscribe("broken", func(context.Context, kafka.Message) error {
		return errors.New("boom")
	}, func(_ context.Context, _ kafka.Message, err error) {
		failed <- err
	}, domain.TopicPaymentProcessed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	if err := bus.Publish(ctx, domain.PaymentProcessed{OrderID: "o1"}); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-failed:
		if err.Error() != "boom" {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error hook not called")
	}
}

func TestMemoryDeduplicator_ClaimLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduplicator(30*time.Second, time.Hour)
	d.clock = func() time.Time { return now }
	ctx := context.Background()

	if st, _ := d.Claim(ctx, "k"); st != port.ClaimAcquired {
		t.Fatalf("first claim = %v", st)
	}
	if st, _ := d.Claim(ctx, "k"); st != port.ClaimInFlight {
		t.Fatalf("pending claim = %v", st)
	}
	now = now.Add(31 * time.Second)
	if st, _ := d.Claim(ctx, "k"); st != port.ClaimAcquired {
		t.Fatalf("lapsed claim = %v", st)
	}
	d.Complete(ctx, "k")
	now = now.Add(59 * time.Minute)
	if st, _ := d.Claim(ctx, "k"); st != port.ClaimDone {
		t.Fatalf("completed claim = %v", st)
	}
	now = now.Add(2 * time.Minute)
	if st, _ := d.Claim(ctx, "k"); st != port.ClaimAcquired {
		t.Fatalf("expired done claim = %v", st)
	}
}

func TestMemoryDeduplicator_PrunesExpiredEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduplicator(30*time.Second, time.Hour)
	d.clock = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		key := "validator:inventory:" + strconv.Itoa(i)
		d.Claim(ctx, key)
		d.Complete(ctx, key)
	}
	if d.Len() != 100 {
		t.Fatalf("len = %d", d.Len())
	}

	now = now.Add(2 * time.Hour)
	d.Claim(ctx, "validator:inventory:new")
	if d.Len() != 1 {
		t.Fatalf("expired entries kept, len = %d", d.Len())
	}
}
