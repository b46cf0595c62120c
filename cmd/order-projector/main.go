// cmd/order-projector/main.go
package main

import (
	"ordersaga/internal/pkg/bootstrap"
	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/interfaces"
)

const (
	serviceName = "order-projector"
	groupID     = "order-projector"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	c := order.NewComponents(serviceName, cfg)

	feed := interfaces.NewOrderFeed()
	projector := application.NewProjectorService(order.Must(c.OrderRepository()), feed, c.Tracer, c.Metrics)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewProjectorHandler(projector, feed).RegisterRoutes(appCtx.Mux)
		},
		Runners: []bootstrap.Runner{
			c.Consumer(groupID, projector, domain.TopicPaymentProcessed),
		},
		Cleanup: c.Close,
	})
}
