package application

import (
	"context"

	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// AlwaysApprove is the default policy for both dimensions.
var AlwaysApprove port.ValidationPolicy = port.PolicyFunc(func(context.Context, domain.OrderPlaced) (port.Verdict, error) {
	return port.Approve, nil
})

// AlwaysDeny rejects every order. Useful for exercising the failure paths.
var AlwaysDeny port.ValidationPolicy = port.PolicyFunc(func(context.Context, domain.OrderPlaced) (port.Verdict, error) {
	return port.Deny, nil
})
