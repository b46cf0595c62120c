package order

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/application/saga"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
	"ordersaga/internal/service/order/infrastructure"
	"ordersaga/internal/service/order/interfaces"
)

// LocalSaga runs every participant in one process over a MemoryBus.
type LocalSaga struct {
	Bus         *infrastructure.MemoryBus
	Intake      *application.IntakeService
	Coordinator *saga.Coordinator
	Store       port.CorrelationStore
	Projector   *application.ProjectorService
	Sweeper     *saga.Sweeper
	Feed        *interfaces.OrderFeed
}

type LocalOptions struct {
	CustomerPolicy  port.ValidationPolicy
	InventoryPolicy port.ValidationPolicy
	Store           port.CorrelationStore
	Repository      domain.OrderRepository
	SweepSchedule   string
}

func NewLocalSaga(opts LocalOptions, tracer trace.Tracer, m *metrics.Metrics) *LocalSaga {
	if opts.CustomerPolicy == nil {
		opts.CustomerPolicy = application.AlwaysApprove
	}
	if opts.InventoryPolicy == nil {
		opts.InventoryPolicy = application.AlwaysApprove
	}
	if opts.Store == nil {
		opts.Store = saga.NewMemoryStore(saga.StoreConfig{})
	}
	if opts.Repository == nil {
		opts.Repository = infrastructure.NewMemoryOrderRepository()
	}

	bus := infrastructure.NewMemoryBus()
	feed := interfaces.NewOrderFeed()
	payments := application.NewPaymentService(bus, tracer)
	l := &LocalSaga{
		Bus:         bus,
		Intake:      application.NewIntakeService(bus, tracer, m),
		Coordinator: saga.NewCoordinator(opts.Store, payments, tracer, m),
		Store:       opts.Store,
		Projector:   application.NewProjectorService(opts.Repository, feed, tracer, m),
		Sweeper:     saga.NewSweeper(opts.Store, opts.SweepSchedule, nil, m).WithPayments(payments),
		Feed:        feed,
	}

	customer := application.NewCustomerValidator(opts.CustomerPolicy, bus, infrastructure.NewMemoryDeduplicator(0, 0), tracer, m)
	inventory := application.NewInventoryChecker(opts.InventoryPolicy, bus, infrastructure.NewMemoryDeduplicator(0, 0), tracer, m)

	bus.Subscribe("customer-validator", interfaces.NewMessageHandler("customer-validator", customer, m), nil,
		domain.TopicOrderPlaced)
	bus.Subscribe("inventory-checker", interfaces.NewMessageHandler("inventory-checker", inventory, m), nil,
		domain.TopicOrderPlaced, domain.TopicCustomerFailed)
	bus.Subscribe("saga-coordinator", interfaces.NewMessageHandler("saga-coordinator", l.Coordinator, m), nil,
		domain.TopicCustomerValidated, domain.TopicCustomerFailed, domain.TopicInventoryReserved, domain.TopicInventoryFailed)
	bus.Subscribe("order-projector", interfaces.NewMessageHandler("order-projector", l.Projector, m), nil,
		domain.TopicPaymentProcessed)
	return l
}

// RegisterRoutes mounts the HTTP surface of every participant on mux.
func (l *LocalSaga) RegisterRoutes(mux *http.ServeMux) {
	interfaces.NewIntakeHandler(l.Intake).RegisterRoutes(mux)
	interfaces.NewProjectorHandler(l.Projector, l.Feed).RegisterRoutes(mux)
	interfaces.NewSagaHandler(l.Store).RegisterRoutes(mux)
}
