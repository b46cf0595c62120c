package infrastructure

import (
	"context"
	"sync"

	"ordersaga/internal/service/order/domain"
)

// MemoryOrderRepository keeps projected orders in process.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	seq    []string
}

var _ domain.OrderRepository = (*MemoryOrderRepository)(nil)

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *domain.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return false, nil
	}
	cp := *order
	cp.Snapshot = order.Snapshot.Clone()
	r.orders[order.ID] = &cp
	r.seq = append(r.seq, order.ID)
	return true, nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	cp.Snapshot = o.Snapshot.Clone()
	return &cp, nil
}

func (r *MemoryOrderRepository) FindAll(_ context.Context) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Order, 0, len(r.seq))
	for _, id := range r.seq {
		cp := *r.orders[id]
		cp.Snapshot = r.orders[id].Snapshot.Clone()
		out = append(out, &cp)
	}
	return out, nil
}
