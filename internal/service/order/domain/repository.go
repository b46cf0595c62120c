// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository persists projected orders. It lives in the domain layer and
// is implemented by the infrastructure layer.
type OrderRepository interface {
	// Save inserts the order and reports whether a row was created. Saving an id
	// that already exists keeps the first row.
	Save(ctx context.Context, order *Order) (bool, error)

	// FindByID returns ErrOrderNotFound when the id is unknown.
	FindByID(ctx context.Context, id string) (*Order, error)

	FindAll(ctx context.Context) ([]*Order, error)
}
