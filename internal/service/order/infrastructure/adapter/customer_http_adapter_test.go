package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"

	"ordersaga/internal/pkg/httpclient"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

func TestCustomerHTTPAdapter_Evaluate(t *testing.T) {
	cases := []struct {
		status  int
		want    port.Verdict
		wantErr bool
	}{
		{http.StatusOK, port.Approve, false},
		{http.StatusForbidden, port.Deny, false},
		{http.StatusServiceUnavailable, port.Deny, true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var gotCustomer string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotCustomer = r.URL.Query().Get("customerId")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			a := NewCustomerHTTPAdapter(httpclient.NewClient(otel.Tracer("test")), srv.URL+"/check")
			got, err := a.Evaluate(context.Background(), domain.OrderPlaced{OrderID: "o1", CustomerID: "c9", ProductIDs: []string{"p1"}})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Fatalf("verdict = %v", got)
			}
			if gotCustomer != "c9" {
				t.Fatalf("customerId = %q", gotCustomer)
			}
		})
	}
}
