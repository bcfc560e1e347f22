// Package server manages individual WebSocket clients, handling read/write
// pumps and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readIdleTimeout = 60 * time.Second
	writeWait       = 10 * time.Second
	pingInterval    = 54 * time.Second
)

// Client represents one WebSocket connection. Its id is the connection
// identity the presence registry is keyed by; it is assigned on upgrade
// and never reused.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	id             string
	addr           string
	closed         bool
	maxMessageSize int64
}

// NewClient creates a Client for an upgraded connection. The send channel
// is buffered so broadcasts never block the hub on a slow reader.
func NewClient(conn *websocket.Conn, hub *Hub, id, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		id:             id,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// ID returns the connection identity token.
func (c *Client) ID() string {
	return c.id
}

// GetSendChan returns the client's send channel for reading outgoing messages.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(readIdleTimeout)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(readIdleTimeout)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs appropriate messages based on the error type and
// returns true if the read loop should break.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Frame from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s disconnected: %v", c.addr, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", c.addr, err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
	return true
}

// forwardFrame decodes a raw frame into an envelope and hands it to the
// hub loop. Malformed frames are dropped silently.
func (c *Client) forwardFrame(raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("Dropping invalid frame from %s: %v", c.addr, err)
		return
	}

	select {
	case c.hub.inbound <- inboundEvent{client: c, envelope: envelope}:
	case <-c.hub.ctx.Done():
	}
}

// readPump pushes inbound frames to the hub until the connection errors
// out, then unregisters. Unregistration is what triggers the disconnect
// transition, whether the peer closed cleanly or timed out.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
			continue
		}
		c.forwardFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in writePump: %v", err)
			}
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				c.writeClose()
				return
			}
			if !c.writeFrame(payload) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
}

// writeFrame writes a frame and drains any queued frames behind it, one
// websocket message each so clients receive well-formed JSON per frame.
func (c *Client) writeFrame(payload []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing message to %s: %v", c.addr, err)
		}
		return false
	}

	queued := len(c.send)
	for i := 0; i < queued; i++ {
		next, ok := <-c.send
		if !ok {
			c.writeClose()
			return false
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, next); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing queued message to %s: %v", c.addr, err)
			}
			return false
		}
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}
