// cmd/inventory-checker/main.go
package main

import (
	"ordersaga/internal/pkg/bootstrap"
	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/domain"
)

const (
	serviceName = "inventory-checker"
	groupID     = "inventory-checker"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	c := order.NewComponents(serviceName, cfg)

	checker := application.NewInventoryChecker(
		order.Must(c.InventoryPolicy()),
		c.Publisher(),
		order.Must(c.Deduplicator()),
		c.Tracer,
		c.Metrics,
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		Runners: []bootstrap.Runner{
			// customer-failed drives the release of reservations.
			c.Consumer(groupID, checker, domain.TopicOrderPlaced, domain.TopicCustomerFailed),
		},
		Cleanup: c.Close,
	})
}
