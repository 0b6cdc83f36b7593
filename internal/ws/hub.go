// Package ws implements the real-time push channel for workers and
// dashboards. Delivery is at-most-once and best-effort: events for a slow,
// stale or disconnected client are dropped, never queued or retried.
// Trip state in the store is the ground truth, not event receipt.
package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"dispatch/internal/domain"
)

// Event is the wire envelope for every pushed message.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Registrar is the worker registry surface the hub drives from the socket
// lifecycle: a register message marks the worker online, a disconnect
// marks it offline.
type Registrar interface {
	Register(id string, capability domain.WorkerCapability, handle domain.NotifyHandle, lat, lng float64)
	Unregister(id string)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Workers and dashboards connect from app origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	registrar Registrar

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a new Hub.
func NewHub(registrar Registrar) *Hub {
	return &Hub{
		registrar: registrar,
		clients:   make(map[*Client]struct{}),
	}
}

// Attach upgrades an HTTP request to a websocket connection and starts the
// client's read and write loops. Dashboards simply stay attached; workers
// additionally send a register message to go online.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := newClient(h, conn)

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	return nil
}

// Broadcast pushes an event to every attached client.
func (h *Hub) Broadcast(event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.Notify(event, payload)
	}
}

// Notify pushes an event to a specific handle. A nil handle is a silent
// drop; the caller must not assume delivery.
func (h *Hub) Notify(handle domain.NotifyHandle, event string, payload any) {
	if handle == nil {
		return
	}
	handle.Notify(event, payload)
}

// detach removes a disconnected client and marks its worker offline.
func (h *Hub) detach(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	if id := client.workerID(); id != "" {
		h.registrar.Unregister(id)
		log.Printf("worker %s disconnected", id)
	}
}
