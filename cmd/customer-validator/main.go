// cmd/customer-validator/main.go
package main

import (
	"ordersaga/internal/pkg/bootstrap"
	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/domain"
)

const (
	serviceName = "customer-validator"
	groupID     = "customer-validator"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	c := order.NewComponents(serviceName, cfg)

	validator := application.NewCustomerValidator(
		order.Must(c.CustomerPolicy()),
		c.Publisher(),
		order.Must(c.Deduplicator()),
		c.Tracer,
		c.Metrics,
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		Runners: []bootstrap.Runner{
			c.Consumer(groupID, validator, domain.TopicOrderPlaced),
		},
		Cleanup: c.Close,
	})
}
