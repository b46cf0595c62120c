package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"ordersaga/internal/pkg/httpclient"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// CustomerHTTPAdapter asks an external customer service whether an order may
// proceed. 2xx approves, 4xx denies, anything else is retried.
type CustomerHTTPAdapter struct {
	client *httpclient.Client
	url    string
}

var _ port.ValidationPolicy = (*CustomerHTTPAdapter)(nil)

func NewCustomerHTTPAdapter(client *httpclient.Client, serviceURL string) *CustomerHTTPAdapter {
	return &CustomerHTTPAdapter{client: client, url: serviceURL}
}

func (a *CustomerHTTPAdapter) Evaluate(ctx context.Context, order domain.OrderPlaced) (port.Verdict, error) {
	params := url.Values{}
	params.Set("orderId", order.OrderID)
	params.Set("customerId", order.CustomerID)
	params.Set("productIds", strings.Join(order.ProductIDs, ","))
	params.Set("totalAmount", strconv.FormatFloat(order.TotalAmount, 'f', -1, 64))

	status, err := a.client.Post(ctx, a.url, params)
	if err != nil {
		return port.Deny, errors.Wrap(err, "customer check")
	}
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return port.Approve, nil
	case status >= http.StatusBadRequest:
		return port.Deny, nil
	}
	return port.Deny, errors.Errorf("customer check: unexpected status %d", status)
}
