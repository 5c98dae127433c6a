// Package server coordinates the session lifecycle: connection registration,
// identity binding, history replay, broadcast fan-out, presence relay, and
// disconnect cleanup, all through the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// inbound carries one decoded frame from a client's read pump into the hub
// loop.
type inbound struct {
	client *Client
	env    Envelope
}

// Hub owns the live client set, the connection registry, and the history
// cache. A single Run loop consumes registrations, disconnects, and inbound
// frames, so every history append and its fan-out execute as one exclusive
// step: all clients observe broadcasts in the same order, and that order is
// exactly the history order a later joiner replays.
type Hub struct {
	clients  map[*Client]bool
	registry *Registry
	history  *History

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub ready to run. History capacity comes from the active
// configuration.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		registry:   NewRegistry(),
		history:    NewHistory(currentConfig().HistorySize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used to hand new connections to the
// hub. Write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used to report disconnects.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run is the hub's event loop. It must be started in its own goroutine and
// is the only goroutine that touches the client set, the registry, and the
// history cache.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.clients[client] = true
			log.Printf("Connection %s accepted from %s. Total connections: %d", client.id, client.addr, len(h.clients))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.dropClient(client)

		case in := <-h.inbound:
			h.dispatch(in.client, in.env)
		}
	}
}

func (h *Hub) dispatch(client *Client, env Envelope) {
	switch env.Event {
	case EventJoin:
		h.handleJoin(client, env.Data)
	case EventChat, EventImage, EventFile, EventVoice:
		h.handleContent(client, env)
	case EventTyping:
		h.handleTyping(client, env.Data)
	default:
		log.Printf("Unknown event %q from %s; dropping", env.Event, client.addr)
	}
}

// handleJoin binds the identity and brings the new member up to date: the
// history replay and the user list go to the joiner alone, while the join
// announcement is appended and broadcast like any other event.
func (h *Hub) handleJoin(client *Client, data json.RawMessage) {
	if !h.clients[client] {
		return
	}
	if client.joined {
		log.Printf("Ignoring repeated join from %s", client.addr)
		return
	}

	var req JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("Invalid join payload from %s: %v", client.addr, err)
		return
	}

	identity, err := h.registry.Register(client.id, req.Username, client.host)
	if err != nil {
		log.Printf("Registry rejected connection %s: %v", client.id, err)
		return
	}
	client.joined = true

	h.sendTo(client, EventHistory, h.history.Snapshot())
	h.announce(EventUserJoined, identity+" joined the chat")
	h.sendTo(client, EventUserList, h.registry.Identities())

	log.Printf("%s joined. Users in session: %d", identity, h.registry.Count())
}

// handleContent stamps, caches, and fans out a content submission. Frames
// from connections that never joined are dropped without a reply.
func (h *Hub) handleContent(client *Client, env Envelope) {
	identity, ok := h.registry.Lookup(client.id)
	if !ok {
		log.Printf("Dropping %q from unjoined connection %s", env.Event, client.addr)
		return
	}

	event, err := contentEvent(env, identity)
	if err != nil {
		log.Printf("Invalid %q payload from %s: %v", env.Event, client.addr, err)
		return
	}

	h.history.Append(event)
	h.broadcast(env.Event, event, nil)
}

// handleTyping relays transient typing state to everyone except the sender.
// Typing signals are never cached and never replayed.
func (h *Hub) handleTyping(client *Client, data json.RawMessage) {
	identity, ok := h.registry.Lookup(client.id)
	if !ok {
		return
	}

	var req TypingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("Invalid typing payload from %s: %v", client.addr, err)
		return
	}

	h.broadcast(EventUserTyping, TypingNotice{Username: identity, IsTyping: req.IsTyping}, client)
}

// announce appends a system event and fans it out. The user count reflects
// the registry at announcement time.
func (h *Hub) announce(eventName, text string) {
	event := Event{
		Kind:      KindSystem,
		Text:      text,
		UserCount: h.registry.Count(),
		Timestamp: time.Now().UnixMilli(),
	}
	h.history.Append(event)
	h.broadcast(eventName, event, nil)
}

// broadcast fans the payload out to every tracked client except exclude.
// Delivery is non-blocking per recipient: a client whose send buffer is full
// is dropped from the session instead of stalling the broadcast.
func (h *Hub) broadcast(eventName string, data any, exclude *Client) {
	payload, err := marshalEnvelope(eventName, data)
	if err != nil {
		log.Printf("Error encoding %q broadcast: %v", eventName, err)
		return
	}

	var stalled []*Client
	for client := range h.clients {
		if client == exclude {
			continue
		}
		if !client.trySend(payload) {
			stalled = append(stalled, client)
		}
	}

	for _, client := range stalled {
		log.Printf("Client from %s removed due to full send buffer", client.addr)
		h.dropClient(client)
	}
}

// sendTo delivers a payload to a single client.
func (h *Hub) sendTo(client *Client, eventName string, data any) {
	payload, err := marshalEnvelope(eventName, data)
	if err != nil {
		log.Printf("Error encoding %q for %s: %v", eventName, client.addr, err)
		return
	}
	if !client.trySend(payload) {
		log.Printf("Failed to queue %q for %s", eventName, client.addr)
	}
}

// dropClient removes the client from the session, closes its send channel,
// and, if the connection had joined, announces the departure with the
// post-removal user count. Safe to call for already-dropped clients.
func (h *Hub) dropClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	client.closed = true
	close(client.send)
	log.Printf("Connection %s from %s closed. Total connections: %d", client.id, client.addr, len(h.clients))

	identity, ok := h.registry.Unregister(client.id)
	if !ok {
		return
	}
	h.announce(EventUserLeft, identity+" left the chat")
}

// closeAllClients closes every tracked connection during shutdown so the
// pump goroutines unwind.
func (h *Hub) closeAllClients() {
	log.Println("Shutting down all client connections...")

	count := 0
	for client := range h.clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing client connection from %s: %v", client.addr, err)
		}
		count++
	}

	log.Printf("Closed %d client connections", count)
}

// Shutdown stops the hub loop, closes every connection, and waits for the
// pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
