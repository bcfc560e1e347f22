// Package server coordinates client registration, room fanout, and
// connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"chat-relay/internal/presence"
	"chat-relay/internal/relay"
)

// inboundEvent pairs a decoded envelope with its originating client.
type inboundEvent struct {
	client   *Client
	envelope Envelope
}

// Hub owns every WebSocket connection and the room channels they are
// subscribed to. Its run loop is the single place where inbound events
// mutate session state: each register, unregister, or client envelope is
// handed to the session coordinator and processed to completion, with all
// resulting broadcasts emitted, before the next event is taken. That
// serialization is what keeps the presence registry consistent without
// the coordinator needing its own locking discipline.
type Hub struct {
	clients     map[string]*Client
	rooms       map[string]map[string]*Client
	coordinator *relay.Coordinator
	register    chan *Client
	unregister  chan *Client
	inbound     chan inboundEvent
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewHub creates a hub together with the presence registry and session
// coordinator it drives. The hub itself is the coordinator's transport.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	registry := presence.NewRegistry()
	h.coordinator = relay.NewCoordinator(registry, presence.NewDirectory(registry), h)
	return h
}

// Coordinator exposes the session coordinator, mainly for tests that need
// deterministic clocks.
func (h *Hub) Coordinator() *relay.Coordinator {
	return h.coordinator
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's main event loop. This method should be called in a
// separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.inbound:
			h.dispatch(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("Client %s connected from %s. Total clients: %d", client.id, client.addr, clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	h.coordinator.Connect(client.id)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if current, ok := h.clients[client.id]; ok && current == client {
		h.detachLocked(client)
		clientCount := len(h.clients)
		h.mutex.Unlock()
		// Close the channel after releasing the lock.
		close(client.send)
		log.Printf("Client %s disconnected from %s. Total clients: %d", client.id, client.addr, clientCount)
	} else {
		h.mutex.Unlock()
	}

	// The client is already out of its room channel, so the leave notice
	// and list updates reach only the remaining members.
	h.coordinator.Disconnect(client.id)
}

// detachLocked removes a client from the client map and every room
// channel. Callers must hold the write lock.
func (h *Hub) detachLocked(client *Client) {
	delete(h.clients, client.id)
	client.closed = true
	for room, members := range h.rooms {
		delete(members, client.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// dispatch decodes one inbound envelope and hands it to the coordinator.
// Anything malformed is dropped without a reply; one client's bad frame
// must never disturb the others.
func (h *Hub) dispatch(event inboundEvent) {
	client := event.client
	envelope := event.envelope

	switch envelope.Event {
	case eventCreateRoom:
		var req joinRequest
		if !decodePayload(client, envelope, &req) {
			return
		}
		h.acknowledge(client, envelope.ID, h.coordinator.CreateRoom(client.id, req.Name, req.Room))

	case eventEnterRoom:
		var req joinRequest
		if !decodePayload(client, envelope, &req) {
			return
		}
		h.acknowledge(client, envelope.ID, h.coordinator.EnterRoom(client.id, req.Name, req.Room))

	case eventMessage:
		var req messageRequest
		if !decodePayload(client, envelope, &req) {
			return
		}
		h.coordinator.SendMessage(client.id, req.Name, req.Text)

	case eventActivity:
		var req activityRequest
		if !decodePayload(client, envelope, &req) {
			return
		}
		h.coordinator.Typing(client.id, req.Name)

	default:
		log.Printf("Dropping unknown event %q from %s", envelope.Event, client.addr)
	}
}

func decodePayload(client *Client, envelope Envelope, dst any) bool {
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		log.Printf("Dropping malformed %s payload from %s: %v", envelope.Event, client.addr, err)
		return false
	}
	return true
}

// acknowledge replies to a join or create request when the client asked
// for an ack by supplying a correlation id.
func (h *Hub) acknowledge(client *Client, id *int64, result error) {
	if id == nil {
		return
	}

	response := ackResponse{}
	if result != nil {
		response.Error = result.Error()
	}
	payload, err := json.Marshal(outEnvelope{Event: eventAck, Data: response, ID: id})
	if err != nil {
		log.Printf("Error encoding ack for %s: %v", client.addr, err)
		return
	}
	if !h.safeSend(client, payload) {
		h.removeFailedClients([]*Client{client})
	}
}

// Join subscribes a connection to a room channel.
func (h *Hub) Join(id, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.clients[id]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][id] = client
}

// Leave unsubscribes a connection from a room channel. Empty channels are
// removed so the room map never outlives its members.
func (h *Hub) Leave(id, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Unicast delivers an event to a single connection.
func (h *Hub) Unicast(id string, event relay.Event) {
	payload, ok := encodeEvent(event)
	if !ok {
		return
	}

	h.mutex.RLock()
	client := h.clients[id]
	h.mutex.RUnlock()
	if client == nil {
		return
	}
	if !h.safeSend(client, payload) {
		h.removeFailedClients([]*Client{client})
	}
}

// ToRoom delivers an event to every member of a room channel.
func (h *Hub) ToRoom(room string, event relay.Event) {
	h.deliverToRoom(room, "", event)
}

// ToRoomExcept delivers an event to every member of a room channel except
// the named connection. Used for typing notices.
func (h *Hub) ToRoomExcept(room, exceptID string, event relay.Event) {
	h.deliverToRoom(room, exceptID, event)
}

// ToAll delivers an event to every connection regardless of room.
func (h *Hub) ToAll(event relay.Event) {
	payload, ok := encodeEvent(event)
	if !ok {
		return
	}

	h.mutex.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mutex.RUnlock()

	h.send(targets, payload)
}

func (h *Hub) deliverToRoom(room, exceptID string, event relay.Event) {
	payload, ok := encodeEvent(event)
	if !ok {
		return
	}

	h.mutex.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for id, client := range members {
		if id == exceptID {
			continue
		}
		targets = append(targets, client)
	}
	h.mutex.RUnlock()

	h.send(targets, payload)
}

func (h *Hub) send(targets []*Client, payload []byte) {
	var failed []*Client
	for _, client := range targets {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the send so the channel cannot be closed
	// underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	current, exists := h.clients[client.id]
	if !exists || current != client || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// removeFailedClients drops clients whose send buffers are full. Their
// presence entries are cleaned up by the unregister path once the read
// pump notices the closed connection.
func (h *Hub) removeFailedClients(clients []*Client) {
	if len(clients) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clients {
		if current, exists := h.clients[client.id]; exists && current == client {
			h.detachLocked(client)
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s removed due to full send buffer", client.id)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
