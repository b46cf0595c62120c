package application

import (
	"context"
	"errors"
	"sync"

	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	failN  int
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failN > 0 {
		p.failN--
		return errors.New("broker unavailable")
	}
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

// setDedupe mirrors the two-phase claim of the real deduplicators. lapse
// stands in for the in-flight TTL running out.
type setDedupe struct {
	mu         sync.Mutex
	keys       map[string]port.ClaimState
	releaseErr error
}

func newSetDedupe() *setDedupe { return &setDedupe{keys: map[string]port.ClaimState{}} }

func (d *setDedupe) Claim(_ context.Context, key string) (port.ClaimState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.keys[key]; ok {
		return st, nil
	}
	d.keys[key] = port.ClaimInFlight
	return port.ClaimAcquired, nil
}

func (d *setDedupe) Complete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = port.ClaimDone
	return nil
}

func (d *setDedupe) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.releaseErr != nil {
		return d.releaseErr
	}
	delete(d.keys, key)
	return nil
}

func (d *setDedupe) lapse(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys[key] == port.ClaimInFlight {
		delete(d.keys, key)
	}
}

type mapRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	err    error
}

func newMapRepo() *mapRepo { return &mapRepo{orders: map[string]*domain.Order{}} }

func (r *mapRepo) Save(_ context.Context, o *domain.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.orders[o.ID]; ok {
		return false, nil
	}
	r.orders[o.ID] = o
	return true, nil
}

func (r *mapRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *mapRepo) FindAll(_ context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) OrderConfirmed(_ context.Context, o *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, o.ID)
}
