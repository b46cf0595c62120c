package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestPost(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		gotQuery = r.URL.Query()
		switch r.URL.Query().Get("customerId") {
		case "blocked":
			w.WriteHeader(http.StatusForbidden)
		case "crash":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := NewClient(otel.Tracer("test"))

	status, err := c.Post(context.Background(), srv.URL+"/eligibility", url.Values{"customerId": {"c1"}})
	if err != nil || status != http.StatusOK {
		t.Fatalf("status = %d, err = %v", status, err)
	}
	if gotQuery.Get("customerId") != "c1" {
		t.Fatalf("query = %v", gotQuery)
	}

	status, err = c.Post(context.Background(), srv.URL, url.Values{"customerId": {"blocked"}})
	if err != nil || status != http.StatusForbidden {
		t.Fatalf("4xx should not be an error: status = %d, err = %v", status, err)
	}

	if _, err := c.Post(context.Background(), srv.URL, url.Values{"customerId": {"crash"}}); err == nil {
		t.Fatalf("5xx should be an error")
	}
}
