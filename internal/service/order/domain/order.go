// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidOrder  = errors.New("order is missing required fields")
	ErrOrderNotFound = errors.New("order not found")
)

// OrderSnapshot is the order as placed at intake. It travels with the saga
// events so the terminal stage never has to re-derive fields.
type OrderSnapshot struct {
	ProductIDs    []string   `json:"productIds"`
	CustomerID    string     `json:"customerId"`
	TotalAmount   float64    `json:"totalAmount"`
	PlacedTime    time.Time  `json:"placedTime"`
	ConfirmedTime *time.Time `json:"confirmedTime,omitempty"`
}

// Validate checks the fields intake is responsible for.
func (s OrderSnapshot) Validate() error {
	if s.CustomerID == "" || len(s.ProductIDs) == 0 || s.TotalAmount < 0 {
		return ErrInvalidOrder
	}
	for _, id := range s.ProductIDs {
		if id == "" {
			return ErrInvalidOrder
		}
	}
	return nil
}

// Clone returns a deep copy so events never share slices.
func (s OrderSnapshot) Clone() OrderSnapshot {
	out := s
	out.ProductIDs = append([]string(nil), s.ProductIDs...)
	if s.ConfirmedTime != nil {
		t := *s.ConfirmedTime
		out.ConfirmedTime = &t
	}
	return out
}

// Order is the projected, persisted order row.
type Order struct {
	ID       string
	Snapshot OrderSnapshot
	State    State
}

// NewConfirmedOrder builds the final order row for a processed payment.
func NewConfirmedOrder(orderID string, snapshot OrderSnapshot, confirmedAt time.Time) (*Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrder
	}
	s := snapshot.Clone()
	t := confirmedAt.UTC()
	s.ConfirmedTime = &t
	return &Order{ID: orderID, Snapshot: s, State: StateConfirmed}, nil
}
