// internal/service/order/application/dto.go
package application

import (
	"time"

	"ordersaga/internal/service/order/domain"
)

// PlaceOrderRequest is the input of the place-order use case.
type PlaceOrderRequest struct {
	ProductIDs  []string `json:"productIds"`
	CustomerID  string   `json:"customerId"`
	TotalAmount float64  `json:"totalAmount"`
}

// PlaceOrderResponse is returned as soon as the order is on the bus.
type PlaceOrderResponse struct {
	OrderID string               `json:"orderId"`
	Status  domain.State         `json:"status"`
	Order   domain.OrderSnapshot `json:"order"`
	Message string               `json:"message"`
}

// OrderView is the read model served by the projector.
type OrderView struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customerId"`
	ProductIDs    []string   `json:"productIds"`
	TotalAmount   float64    `json:"totalAmount"`
	Status        string     `json:"status"`
	PlacedTime    time.Time  `json:"placedTime"`
	ConfirmedTime *time.Time `json:"confirmedTime,omitempty"`
}

func ToOrderView(o *domain.Order) OrderView {
	return OrderView{
		ID:            o.ID,
		CustomerID:    o.Snapshot.CustomerID,
		ProductIDs:    o.Snapshot.ProductIDs,
		TotalAmount:   o.Snapshot.TotalAmount,
		Status:        string(o.State),
		PlacedTime:    o.Snapshot.PlacedTime,
		ConfirmedTime: o.Snapshot.ConfirmedTime,
	}
}

// SagaView is the read model of one saga's join state.
type SagaView struct {
	OrderID   string     `json:"orderId"`
	State     string     `json:"state"`
	Reason    string     `json:"reason,omitempty"`
	Customer  string     `json:"customer,omitempty"`
	Inventory string     `json:"inventory,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
	// PaymentPending: joined, but PaymentProcessed not yet published.
	PaymentPending bool `json:"paymentPending,omitempty"`
}

func ToSagaView(r domain.SagaRecord) SagaView {
	v := SagaView{
		OrderID:   r.OrderID,
		State:     string(r.State),
		Reason:    string(r.Reason),
		Customer:  string(r.Customer),
		Inventory: string(r.Inventory),

		PaymentPending: r.PaymentPending(),
	}
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		v.CreatedAt = &t
	}
	if !r.DecidedAt.IsZero() {
		t := r.DecidedAt
		v.DecidedAt = &t
	}
	return v
}
