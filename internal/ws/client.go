package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dispatch/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer bounds the per-client queue. When it fills, further
	// events to that client are dropped, upholding the at-most-once
	// contract instead of blocking the publisher.
	sendBuffer = 32
)

// registerMessage is the first message a worker sends after connecting.
type registerMessage struct {
	Type       string  `json:"type"`
	WorkerID   string  `json:"worker_id"`
	Capability string  `json:"capability"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// Client is one attached websocket connection. A registered client doubles
// as the worker's notification handle.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event

	mu     sync.Mutex
	id     string
	closed bool
}

var _ domain.NotifyHandle = (*Client)(nil)

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Event, sendBuffer),
	}
}

// Notify queues an event for delivery. Events to a closed or saturated
// client are silently dropped.
func (c *Client) Notify(event string, payload any) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	select {
	case c.send <- Event{Event: event, Data: payload}:
	default:
	}
}

func (c *Client) workerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// readPump consumes inbound messages. The only message workers send is the
// register handshake; everything else arrives over HTTP.
func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg registerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("ws: dropping malformed message: %v", err)
			continue
		}

		if msg.Type == "register" && msg.WorkerID != "" {
			c.mu.Lock()
			c.id = msg.WorkerID
			c.mu.Unlock()

			capability := domain.WorkerCapability(msg.Capability)
			if capability == "" {
				capability = domain.CapabilityDriver
			}
			c.hub.registrar.Register(msg.WorkerID, capability, c, msg.Lat, msg.Lng)
			log.Printf("worker %s registered on push channel", msg.WorkerID)
		}
	}
}

// writePump drains the send queue onto the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}
