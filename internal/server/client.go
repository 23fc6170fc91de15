package server

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/protocol"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeWait     = 10 * time.Second
	sendQueueSize = 256
)

// Client is one live connection and its session state machine: registered
// and unbound after connect, bound to a user and conversation after a join,
// terminated once the transport closes. The binding fields are guarded by
// the hub's mutex, never touched directly by the session.
type Client struct {
	app  *App
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	addr string
	log  *slog.Logger

	// Guarded by hub.mu.
	closed         bool
	userID         string
	conversationID string

	limiter *rateLimiter
}

// NewClient wraps an upgraded connection in a session.
func NewClient(app *App, conn *websocket.Conn, addr string) *Client {
	cfg := app.Config
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		app:     app,
		hub:     app.Hub,
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		addr:    addr,
		log:     app.Log.With("addr", addr),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// binding reads the session's current user/conversation binding under the
// hub lock.
func (c *Client) binding() (userID, conversationID string, joined bool) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.userID, c.conversationID, c.conversationID != ""
}

func (c *Client) sendError(message string) {
	c.hub.SendTo(c, protocol.Error(message))
}

// handleFrame validates and dispatches one inbound frame. Every failure is
// reported to this connection only; the session stays open.
func (c *Client) handleFrame(raw []byte) {
	in, err := protocol.ParseInbound(raw)
	if err != nil {
		c.log.Debug("rejecting frame", "error", err)
		c.sendError("invalid message format")
		return
	}

	switch f := in.(type) {
	case protocol.Join:
		c.handleJoin(f)
	case protocol.Leave:
		c.handleLeave()
	case protocol.Publish:
		c.handleNewMessage(f)
	case protocol.Clear:
		c.handleClear()
	}
}

// handleJoin binds the session to a conversation and pushes its history.
// The other subscribers learn about the join; the joining connection does
// not receive its own announcement.
func (c *Client) handleJoin(f protocol.Join) {
	conversation, err := c.app.Conversations.Get(f.ConversationID)
	if err != nil {
		c.sendError("conversation not found: " + f.ConversationID)
		return
	}

	c.hub.JoinConversation(c, f.UserID, f.ConversationID)
	c.hub.SendTo(c, protocol.ConversationHistory(conversation))
	c.hub.Broadcast(f.ConversationID, protocol.UserJoined(f.UserID, f.ConversationID), c)
}

func (c *Client) handleLeave() {
	userID, conversationID, ok := c.hub.LeaveConversation(c)
	if !ok {
		return
	}
	c.hub.Broadcast(conversationID, protocol.UserLeft(userID, conversationID), c)
}

// handleNewMessage appends a validated message to the session's scope and
// broadcasts it to everyone else in that scope. The sender is excluded: its
// UI already shows the message through its optimistic local append.
func (c *Client) handleNewMessage(f protocol.Publish) {
	msg := f.Message
	if err := chat.ValidateMessage(msg.Content, msg.Sender); err != nil {
		c.sendError(err.Error())
		return
	}
	msg.Normalize()

	if c.app.Config.Mode == ModeGlobal {
		if err := c.app.Messages.Append(msg); err != nil {
			c.log.Warn("append failed", "error", err)
			c.sendError("failed to store message")
			return
		}
		c.hub.Broadcast(ScopeAll, protocol.NewMessage(msg, ""), c)
		return
	}

	_, conversationID, joined := c.binding()
	if !joined {
		c.sendError("not joined to any conversation")
		return
	}
	if err := c.app.Conversations.AppendMessage(conversationID, msg); err != nil {
		c.sendError("failed to add message to conversation: " + conversationID)
		return
	}
	c.hub.Broadcast(conversationID, protocol.NewMessage(msg, conversationID), c)
}

// handleClear wipes the scope's history and pushes an empty history frame to
// the whole scope, requester included, so every client reflects the empty
// state.
func (c *Client) handleClear() {
	if c.app.Config.Mode == ModeGlobal {
		if err := c.app.Messages.Clear(); err != nil {
			c.log.Warn("clear failed", "error", err)
			c.sendError("failed to clear messages")
			return
		}
		c.hub.Broadcast(ScopeAll, protocol.MessageHistory(nil), nil)
		return
	}

	_, conversationID, joined := c.binding()
	if !joined {
		c.sendError("not joined to any conversation")
		return
	}
	if err := c.app.Conversations.ClearMessages(conversationID); err != nil {
		c.sendError("failed to clear messages: " + conversationID)
		return
	}
	c.hub.Broadcast(conversationID, protocol.MessageHistory(nil), nil)
}

// readPump consumes frames until the transport closes, then deregisters the
// session. Deregistration announces the departure when the session was
// joined to a conversation.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("closing connection", "error", err)
		}
	}()

	c.setupReadDeadlines()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if c.limiter != nil && !c.limiter.allow() {
			c.log.Debug("rate limit exceeded, discarding frame")
			continue
		}
		c.handleFrame(raw)
	}
}

func (c *Client) setupReadDeadlines() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("setting read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("frame exceeded maximum size", "limit", c.app.Config.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("client disconnected", "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("connection closed", "error", err)
	default:
		c.log.Warn("websocket read error", "error", err)
	}
}

// writePump drains the send channel to the connection and keeps the peer
// alive with periodic pings. It exits when the send channel closes or a
// write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("closing connection", "error", err)
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeFrame(payload); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeFrame writes one frame per WebSocket message. Frames are discrete
// events; queued frames each get their own message rather than being
// coalesced.
func (c *Client) writeFrame(payload []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return nil
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, queued); err != nil {
			return err
		}
	}
	return nil
}
