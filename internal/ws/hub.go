package ws

import (
	"encoding/json"
	"sync"
)

// BoardOrders is the shared staff board every authenticated connection joins.
// Order lifecycle events from the dispatcher land here.
const BoardOrders = "orders"

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// boardEvent is an internal struct for routing events to a specific board
type boardEvent struct {
	Board string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by board
	boards map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *boardEvent

	// Mutex for thread-safe board access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		boards:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *boardEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.boards[client.board] == nil {
				h.boards[client.board] = make(map[*Client]bool)
			}
			h.boards[client.board][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.boards[client.board]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty boards
					if len(clients) == 0 {
						delete(h.boards, client.board)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.boards[event.Board]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients on this board
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.boards[event.Board], client)
					if len(h.boards[event.Board]) == 0 {
						delete(h.boards, event.Board)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all clients subscribed to a board
// This is the public API for the dispatcher to broadcast events
func (h *Hub) Broadcast(board string, event Event) {
	h.broadcast <- &boardEvent{
		Board: board,
		Event: event,
	}
}
