// internal/service/order/domain/event.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrUnroutableEvent is returned by a consumer that received a kind it does not handle.
	ErrUnroutableEvent = errors.New("event kind not handled by this consumer")
)

// Kind is the discriminator carried in the envelope's "type" field.
type Kind string

const (
	KindOrderPlaced       Kind = "OrderPlacedEvent"
	KindCustomerValidated Kind = "CustomerValidatedEvent"
	KindCustomerFailed    Kind = "CustomerFailedEvent"
	KindInventoryReserved Kind = "InventoryReservedEvent"
	KindInventoryFailed   Kind = "InventoryFailedEvent"
	KindPaymentProcessed  Kind = "PaymentProcessedEvent"
)

const (
	TopicOrderPlaced       = "order-placed"
	TopicCustomerValidated = "customer-validated"
	TopicCustomerFailed    = "customer-failed"
	TopicInventoryReserved = "inventory-reserved"
	TopicInventoryFailed   = "inventory-failed"
	TopicPaymentProcessed  = "payment-processed"
)

// Topic returns the topic an event kind is published to.
func (k Kind) Topic() string {
	switch k {
	case KindOrderPlaced:
		return TopicOrderPlaced
	case KindCustomerValidated:
		return TopicCustomerValidated
	case KindCustomerFailed:
		return TopicCustomerFailed
	case KindInventoryReserved:
		return TopicInventoryReserved
	case KindInventoryFailed:
		return TopicInventoryFailed
	case KindPaymentProcessed:
		return TopicPaymentProcessed
	}
	return ""
}

// Event is the closed set of saga events. Only types in this file implement it.
type Event interface {
	Kind() Kind
	// Key is the correlation key, always the order id.
	Key() string
	sealed()
}

// OrderPlaced fans out to both validators.
type OrderPlaced struct {
	OrderID     string    `json:"orderId"`
	ProductIDs  []string  `json:"productIds"`
	CustomerID  string    `json:"customerId"`
	TotalAmount float64   `json:"totalAmount"`
	PlacedTime  time.Time `json:"placedTime"`
}

// Snapshot rebuilds the order snapshot carried downstream.
func (e OrderPlaced) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		ProductIDs:  append([]string(nil), e.ProductIDs...),
		CustomerID:  e.CustomerID,
		TotalAmount: e.TotalAmount,
		PlacedTime:  e.PlacedTime,
	}
}

type CustomerValidated struct {
	OrderID string        `json:"orderId"`
	Order   OrderSnapshot `json:"order"`
}

type CustomerFailed struct {
	OrderID string `json:"orderId"`
}

type InventoryReserved struct {
	OrderID  string `json:"orderId"`
	Reserved bool   `json:"reserved"`
}

type InventoryFailed struct {
	OrderID string `json:"orderId"`
}

type PaymentProcessed struct {
	OrderID string        `json:"orderId"`
	Order   OrderSnapshot `json:"order"`
}

func (OrderPlaced) Kind() Kind       { return KindOrderPlaced }
func (CustomerValidated) Kind() Kind { return KindCustomerValidated }
func (CustomerFailed) Kind() Kind    { return KindCustomerFailed }
func (InventoryReserved) Kind() Kind { return KindInventoryReserved }
func (InventoryFailed) Kind() Kind   { return KindInventoryFailed }
func (PaymentProcessed) Kind() Kind  { return KindPaymentProcessed }

func (e OrderPlaced) Key() string       { return e.OrderID }
func (e CustomerValidated) Key() string { return e.OrderID }
func (e CustomerFailed) Key() string    { return e.OrderID }
func (e InventoryReserved) Key() string { return e.OrderID }
func (e InventoryFailed) Key() string   { return e.OrderID }
func (e PaymentProcessed) Key() string  { return e.OrderID }

func (OrderPlaced) sealed()       {}
func (CustomerValidated) sealed() {}
func (CustomerFailed) sealed()    {}
func (InventoryReserved) sealed() {}
func (InventoryFailed) sealed()   {}
func (PaymentProcessed) sealed()  {}

// Envelope is the wire form of every event.
type Envelope struct {
	Type       Kind            `json:"type"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// EncodeEvent wraps an event in an envelope and serializes it.
func EncodeEvent(eventID string, occurredAt time.Time, ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	return json.Marshal(Envelope{
		Type:       ev.Kind(),
		EventID:    eventID,
		OccurredAt: occurredAt.UTC(),
		Data:       data,
	})
}

// DecodeEvent parses an envelope and returns the concrete event.
func DecodeEvent(raw []byte) (Event, Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, env, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var ev Event
	var err error
	switch env.Type {
	case KindOrderPlaced:
		ev, err = decodeAs[OrderPlaced](env.Data)
	case KindCustomerValidated:
		ev, err = decodeAs[CustomerValidated](env.Data)
	case KindCustomerFailed:
		ev, err = decodeAs[CustomerFailed](env.Data)
	case KindInventoryReserved:
		ev, err = decodeAs[InventoryReserved](env.Data)
	case KindInventoryFailed:
		ev, err = decodeAs[InventoryFailed](env.Data)
	case KindPaymentProcessed:
		ev, err = decodeAs[PaymentProcessed](env.Data)
	default:
		return nil, env, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
	if err != nil {
		return nil, env, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	if ev.Key() == "" {
		return nil, env, fmt.Errorf("%s without orderId: %w", env.Type, ErrInvalidOrder)
	}
	return ev, env, nil
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
