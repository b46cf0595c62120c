package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeEvent_CustomerValidated(t *testing.T) {
	raw := []byte(`{
		"type": "CustomerValidatedEvent",
		"eventId": "e-1",
		"occurredAt": "2024-05-01T10:00:00Z",
		"data": {
			"orderId": "o1",
			"order": {"productIds": ["p1", "p2"], "customerId": "c1", "totalAmount": 42.5, "placedTime": "2024-05-01T09:59:00Z"}
		}
	}`)

	ev, env, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.EventID != "e-1" {
		t.Fatalf("event id = %q", env.EventID)
	}
	cv, ok := ev.(CustomerValidated)
	if !ok {
		t.Fatalf("got %T, want CustomerValidated", ev)
	}
	if cv.Key() != "o1" || cv.Order.CustomerID != "c1" || len(cv.Order.ProductIDs) != 2 {
		t.Fatalf("unexpected payload: %+v", cv)
	}
	if cv.Order.ConfirmedTime != nil {
		t.Fatalf("confirmed time should be unset")
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"unknown type", `{"type":"RefundIssuedEvent","data":{"orderId":"o1"}}`, ErrUnknownEventType},
		{"missing order id", `{"type":"InventoryFailedEvent","data":{}}`, ErrInvalidOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeEvent([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed envelope")
	}
}

func TestEncodeEvent_UsesKindAsType(t *testing.T) {
	placed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	raw, err := EncodeEvent("e-9", placed, InventoryReserved{OrderID: "o9", Reserved: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, env, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != KindInventoryReserved || !env.OccurredAt.Equal(placed) {
		t.Fatalf("envelope = %+v", env)
	}
	if got := ev.(InventoryReserved); !got.Reserved || got.OrderID != "o9" {
		t.Fatalf("event = %+v", got)
	}
}

func TestKindTopic(t *testing.T) {
	for _, k := range []Kind{KindOrderPlaced, KindCustomerValidated, KindCustomerFailed, KindInventoryReserved, KindInventoryFailed, KindPaymentProcessed} {
		if k.Topic() == "" {
			t.Fatalf("kind %s has no topic", k)
		}
	}
	if Kind("Other").Topic() != "" {
		t.Fatalf("unknown kind should have no topic")
	}
}
