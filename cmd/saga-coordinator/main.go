// cmd/saga-coordinator/main.go
package main

import (
	"ordersaga/internal/pkg/bootstrap"
	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/application/saga"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/interfaces"
)

const (
	serviceName = "saga-coordinator"
	groupID     = "saga-coordinator"
	dltGroupID  = "saga-dlt-monitor"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	c := order.NewComponents(serviceName, cfg)

	store := order.Must(c.CorrelationStore())
	payments := application.NewPaymentService(c.Publisher(), c.Tracer)
	coordinator := saga.NewCoordinator(store, payments, c.Tracer, c.Metrics)
	sweeper := saga.NewSweeper(store, cfg.Saga.SweepSchedule, order.Must(c.Locker()), c.Metrics).
		WithPayments(payments)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewSagaHandler(store).RegisterRoutes(appCtx.Mux)
		},
		Runners: []bootstrap.Runner{
			c.Consumer(groupID, coordinator,
				domain.TopicCustomerValidated,
				domain.TopicCustomerFailed,
				domain.TopicInventoryReserved,
				domain.TopicInventoryFailed,
			),
			sweeper,
			c.DeadLetterConsumer(dltGroupID),
		},
		Cleanup: c.Close,
	})
}
