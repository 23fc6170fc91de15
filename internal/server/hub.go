package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/protocol"
)

// ScopeAll targets every registered connection regardless of conversation
// binding. Conversation ids are uuids, so the sentinel cannot collide.
const ScopeAll = "*"

// broadcastRequest is one fan-out unit: a serialized frame, the scope to
// resolve targets from, and an optional connection to skip.
type broadcastRequest struct {
	scope   string
	payload []byte
	exclude *Client
}

// Hub tracks every live connection, the per-conversation subscriber sets,
// and fans frames out to them. Registration, unregistration, and broadcasts
// run through the Run loop; the maps are additionally guarded by a mutex so
// synchronous operations (join, leave, direct sends) never observe a
// half-updated subscriber set.
type Hub struct {
	log *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastRequest

	mu          sync.RWMutex
	clients     map[*Client]bool
	subscribers map[string]map[*Client]struct{}

	// greet, when set, produces the frame pushed to a connection right after
	// registration. The global mode uses it for the initial history snapshot.
	greet func(*Client) []byte

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub ready to manage connections.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:         log,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan broadcastRequest),
		clients:     make(map[*Client]bool),
		subscribers: make(map[string]map[*Client]struct{}),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Run is the hub's event loop. It must run in its own goroutine and exits
// only on Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			if client == nil {
				continue
			}
			h.add(client)
			h.startPumps(client)

		case client := <-h.unregister:
			h.remove(client)

		case req := <-h.broadcast:
			h.publish(req)
		}
	}
}

// Broadcast fans the payload out to the scope's subscribers, skipping
// exclude. Delivery is best-effort and never blocks on a slow consumer.
func (h *Hub) Broadcast(scope string, payload []byte, exclude *Client) {
	select {
	case h.broadcast <- broadcastRequest{scope: scope, payload: payload, exclude: exclude}:
	case <-h.ctx.Done():
	}
}

// SendTo delivers the payload to one connection if it is still open. A
// closed or congested peer is dropped from the hub, not treated as an error:
// it is an expected race with disconnect.
func (h *Hub) SendTo(c *Client, payload []byte) {
	if h.safeSend(c, payload) {
		return
	}
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// JoinConversation binds the connection to a user and a conversation and
// inserts it into the conversation's subscriber set. Membership is
// exclusive: a connection bound elsewhere leaves that set first.
func (h *Hub) JoinConversation(c *Client, userID, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	if c.conversationID != "" && c.conversationID != conversationID {
		h.unsubscribeLocked(c)
	}
	c.userID = userID
	c.conversationID = conversationID

	set, ok := h.subscribers[conversationID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subscribers[conversationID] = set
	}
	set[c] = struct{}{}
}

// BindUser associates the connection with a user id without joining a
// conversation.
func (h *Hub) BindUser(c *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.userID = userID
}

// LeaveConversation clears the connection's conversation binding and removes
// it from the subscriber set. It reports the binding that was released; ok
// is false when the connection was not bound.
func (h *Hub) LeaveConversation(c *Client) (userID, conversationID string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.conversationID == "" {
		return "", "", false
	}
	userID, conversationID = c.userID, c.conversationID
	h.unsubscribeLocked(c)
	c.conversationID = ""
	return userID, conversationID, true
}

// SubscribersOf returns a snapshot of the connections joined to the
// conversation.
func (h *Hub) SubscribersOf(conversationID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subscribers[conversationID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ClientCount reports the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// unsubscribeLocked removes the connection from its conversation's
// subscriber set. Callers must hold the write lock.
func (h *Hub) unsubscribeLocked(c *Client) {
	set, ok := h.subscribers[c.conversationID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subscribers, c.conversationID)
	}
}

// add registers the connection and pushes the greeting frame, if any.
func (h *Hub) add(c *Client) {
	h.mu.Lock()
	c.closed = false
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("client registered", "addr", c.addr, "clients", count)

	if h.greet != nil {
		h.safeSend(c, h.greet(c))
	}
}

func (h *Hub) startPumps(c *Client) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// remove deregisters the connection. Safe to call for connections that are
// already gone: both deliberate disconnects and error paths end up here.
// A connection that was joined to a conversation gets announced as departed
// to the remaining subscribers.
func (h *Hub) remove(c *Client) {
	userID, conversationID, announce := h.drop(c)
	if announce {
		h.publish(broadcastRequest{
			scope:   conversationID,
			payload: protocol.UserLeft(userID, conversationID),
		})
	}
}

// drop detaches the connection from all hub state and closes its send
// channel. It reports the conversation binding the connection held, so the
// caller can announce the departure.
func (h *Hub) drop(c *Client) (userID, conversationID string, announce bool) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return "", "", false
	}
	delete(h.clients, c)
	c.closed = true
	userID, conversationID = c.userID, c.conversationID
	if conversationID != "" {
		h.unsubscribeLocked(c)
		c.conversationID = ""
	}
	count := len(h.clients)
	h.mu.Unlock()

	// Close the channel after releasing the lock.
	close(c.send)
	h.log.Debug("client unregistered", "addr", c.addr, "clients", count)

	return userID, conversationID, conversationID != "" && userID != ""
}

// publish resolves the target set and delivers the payload to each open
// target. Connections that cannot accept the frame are dropped.
func (h *Hub) publish(req broadcastRequest) {
	targets := h.targetSnapshot(req.scope)

	var failed []*Client
	for _, c := range targets {
		if c == req.exclude {
			continue
		}
		if !h.safeSend(c, req.payload) {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		h.log.Debug("dropping unresponsive client", "addr", c.addr)
		h.remove(c)
	}
}

func (h *Hub) targetSnapshot(scope string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if scope == ScopeAll {
		out := make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			out = append(out, c)
		}
		return out
	}
	set := h.subscribers[scope]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// safeSend queues the payload on the client's send channel if the client is
// still registered and the channel has room.
func (h *Hub) safeSend(c *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok || c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeAllClients tears every live connection down during shutdown. Dropping
// a client closes its send channel, which releases the write pump; closing
// the conn unblocks the read pump. No departures are announced at this point.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("closing client connection", "addr", c.addr, "error", err)
			}
		}
	}
	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the Run loop, closes every connection, and waits for the
// pump goroutines to finish or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
