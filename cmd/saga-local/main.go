// cmd/saga-local/main.go
package main

import (
	"ordersaga/internal/pkg/bootstrap"
	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order"
)

const serviceName = "saga-local"

// saga-local runs the whole saga in one process without Kafka, for demos and
// local development. Policies, store and repository follow the config.
func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	c := order.NewComponents(serviceName, cfg)

	local := order.NewLocalSaga(order.LocalOptions{
		CustomerPolicy:  order.Must(c.CustomerPolicy()),
		InventoryPolicy: order.Must(c.InventoryPolicy()),
		Store:           order.Must(c.CorrelationStore()),
		Repository:      order.Must(c.OrderRepository()),
		SweepSchedule:   cfg.Saga.SweepSchedule,
	}, c.Tracer, c.Metrics)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Config:           cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) { local.RegisterRoutes(appCtx.Mux) },
		Runners:          []bootstrap.Runner{bootstrap.RunnerFunc(local.Bus.Run), local.Sweeper},
		Cleanup:          c.Close,
	})
}
