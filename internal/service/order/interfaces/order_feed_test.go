package interfaces

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/domain"
)

func TestOrderFeed_Broadcast(t *testing.T) {
	feed := NewOrderFeed()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?customerId=c1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for feed.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	other := &domain.Order{ID: "skip", State: domain.StateConfirmed, Snapshot: domain.OrderSnapshot{CustomerID: "c2", ProductIDs: []string{"p1"}}}
	mine := &domain.Order{ID: "o1", State: domain.StateConfirmed, Snapshot: domain.OrderSnapshot{CustomerID: "c1", ProductIDs: []string{"p1"}}}
	feed.OrderConfirmed(context.Background(), other)
	feed.OrderConfirmed(context.Background(), mine)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var view application.OrderView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatal(err)
	}
	if view.ID != "o1" {
		t.Fatalf("received %s, want o1 only", view.ID)
	}
}
