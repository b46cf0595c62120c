package port

import (
	"context"

	"ordersaga/internal/service/order/domain"
)

// PaymentProcessor runs once per order after both validations approve.
type PaymentProcessor interface {
	Process(ctx context.Context, orderID string, order domain.OrderSnapshot) error
}

// OrderNotifier is told about every newly confirmed order.
type OrderNotifier interface {
	OrderConfirmed(ctx context.Context, order *domain.Order)
}
