package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"itemstore/internal/item/model"
	"itemstore/pkg/logger"

	"github.com/google/uuid"
)

const (
	CreatedType = "ITEM_CREATED" // POST /items committed
	UpdatedType = "ITEM_UPDATED" // PUT /items/{id} committed
	DeletedType = "ITEM_DELETED" // DELETE /items/{id} committed

	broadcastBuffer = 256
	clientBuffer    = 64
)

// Event is one committed change, as sent to subscribers.
type Event struct {
	ID      string          `json:"event_id"`
	Type    string          `json:"type"`
	ItemID  int64           `json:"item_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// Hub fans committed item changes out to websocket subscribers. Publishing
// never blocks: when the queue is full the event is dropped.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan Event
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan Event, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run services the hub channels until ctx is done, then closes every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Sugar.Infof("Change feed subscriber %s connected", client.ID)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				logger.Sugar.Infof("Change feed subscriber %s disconnected", client.ID)
			}
			h.mu.Unlock()

		case evt := <-h.Broadcast:
			payload, err := json.Marshal(evt)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling change event: %v", err)
				continue
			}

			// Collect recipients under the lock, send outside of it.
			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// A lagging subscriber is dropped rather than stalling the hub.
					logger.Sugar.Warnf("Subscriber %s's send buffer is full. Unregistering.", client.ID)
					h.drop(client)
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues evt without blocking and reports whether it was accepted.
func (h *Hub) Publish(evt Event) bool {
	select {
	case h.Broadcast <- evt:
		return true
	default:
		logger.Sugar.Warnf("Change feed queue full, dropping %s for item %d", evt.Type, evt.ItemID)
		return false
	}
}

// Observe turns committed dispatches into change events. It has the shape of
// a request hook.
func (h *Hub) Observe(d model.Dispatch) {
	if !d.Committed() {
		return
	}

	var eventType string
	switch d.Op {
	case model.OpCreate:
		eventType = CreatedType
	case model.OpUpdate:
		eventType = UpdatedType
	case model.OpDelete:
		eventType = DeletedType
	}

	payload, err := json.Marshal(d.Record)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling item %d for change feed: %v", d.ItemID, err)
		return
	}
	h.Publish(Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		ItemID:  d.ItemID,
		Payload: payload,
		At:      time.Now().UTC(),
	})
}
