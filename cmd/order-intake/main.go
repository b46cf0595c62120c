// cmd/order-intake/main.go
package main

import (
	"ordersaga/internal/pkg/bootstrap"
	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/interfaces"
)

const serviceName = "order-intake"

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	c := order.NewComponents(serviceName, cfg)

	intake := application.NewIntakeService(c.Publisher(), c.Tracer, c.Metrics)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewIntakeHandler(intake).RegisterRoutes(appCtx.Mux)
		},
		Cleanup: c.Close,
	})
}
