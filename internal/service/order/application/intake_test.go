package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"

	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/service/order/domain"
)

func TestIntakeService_PlaceOrder(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.New(nil)
	svc := NewIntakeService(pub, otel.Tracer("test"), m)
	placed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.clock = func() time.Time { return placed }
	svc.newID = func() string { return "o1" }

	resp, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		ProductIDs:  []string{"p1", "p2"},
		CustomerID:  "c1",
		TotalAmount: 42,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if resp.OrderID != "o1" || resp.Status != domain.StatePlaced {
		t.Fatalf("response = %+v", resp)
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	ev, ok := events[0].(domain.OrderPlaced)
	if !ok {
		t.Fatalf("published %T, want OrderPlaced", events[0])
	}
	if ev.OrderID != "o1" || ev.CustomerID != "c1" || len(ev.ProductIDs) != 2 || !ev.PlacedTime.Equal(placed) {
		t.Fatalf("event = %+v", ev)
	}
	if got := testutil.ToFloat64(m.OrdersPlaced); got != 1 {
		t.Fatalf("orders placed = %v", got)
	}
}

func TestIntakeService_PlaceOrder_Invalid(t *testing.T) {
	cases := map[string]PlaceOrderRequest{
		"no customer":      {ProductIDs: []string{"p1"}, TotalAmount: 1},
		"no products":      {CustomerID: "c1", TotalAmount: 1},
		"empty product id": {CustomerID: "c1", ProductIDs: []string{""}},
		"negative amount":  {CustomerID: "c1", ProductIDs: []string{"p1"}, TotalAmount: -1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			pub := &recordingPublisher{}
			svc := NewIntakeService(pub, otel.Tracer("test"), metrics.New(nil))
			_, err := svc.PlaceOrder(context.Background(), &req)
			if !errors.Is(err, domain.ErrInvalidOrder) {
				t.Fatalf("err = %v, want ErrInvalidOrder", err)
			}
			if len(pub.published()) != 0 {
				t.Fatal("invalid order was published")
			}
		})
	}
}

func TestIntakeService_PlaceOrder_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := metrics.New(nil)
	svc := NewIntakeService(pub, otel.Tracer("test"), m)
	if _, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{ProductIDs: []string{"p1"}, CustomerID: "c1"}); err == nil {
		t.Fatal("expected publish error")
	}
	if got := testutil.ToFloat64(m.OrdersPlaced); got != 0 {
		t.Fatalf("orders placed = %v", got)
	}
}
