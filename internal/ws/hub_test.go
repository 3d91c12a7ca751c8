package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, board string) *Client {
	return &Client{
		hub:   hub,
		board: board,
		send:  make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, BoardOrders)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.boards[BoardOrders] == nil {
		t.Fatal("board not created")
	}
	if !hub.boards[BoardOrders][client] {
		t.Fatal("client not registered on board")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, BoardOrders)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Board should be cleaned up when empty
	if hub.boards[BoardOrders] != nil {
		t.Fatal("board not cleaned up after last client unregistered")
	}
}

func TestBroadcastReachesAllBoardClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, BoardOrders)
	client2 := mockClient(hub, BoardOrders)
	client3 := mockClient(hub, BoardOrders)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"order_number":"LAV-001","status":"processing"}`)
	hub.Broadcast(BoardOrders, Event{
		Type:    "order.status_changed",
		Payload: testPayload,
	})

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.status_changed" {
				t.Errorf("client%d: expected type 'order.status_changed', got '%s'", i+1, received.Type)
			}
			if string(received.Payload) != string(testPayload) {
				t.Errorf("client%d: payload = %s", i+1, received.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestBroadcastIsolatedByBoard(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	staff := mockClient(hub, BoardOrders)
	other := mockClient(hub, "customer:abc")

	hub.register <- staff
	hub.register <- other
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(BoardOrders, Event{
		Type:    "order.created",
		Payload: json.RawMessage(`{"order_number":"LAV-002"}`),
	})

	select {
	case <-staff.send:
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Fatal("staff client did not receive message")
	}

	select {
	case <-other.send:
		t.Fatal("client on another board should not receive the message")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToEmptyBoard(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, BoardOrders)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Broadcast to a board nobody joined
	hub.Broadcast("customer:nobody", Event{
		Type:    "order.completed",
		Payload: json.RawMessage(`{}`),
	})

	select {
	case <-client.send:
		t.Fatal("client should not receive message for a different board")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}

func TestHubCleanupOnPartialUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, BoardOrders)
	client2 := mockClient(hub, BoardOrders)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.boards[BoardOrders]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.boards[BoardOrders]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.boards[BoardOrders]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.boards[BoardOrders]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.boards[BoardOrders] != nil {
		t.Fatal("board should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}
