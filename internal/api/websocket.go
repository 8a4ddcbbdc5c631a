package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/pos-bridge/internal/channel"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
	sendBuffer     = 256
)

// client is one connected UI
type client struct {
	conn   *websocket.Conn
	send   chan Frame
	server *Server
	remote string

	mu     sync.Mutex
	closed bool
}

// handleWebSocket upgrades the request and serves the method channel on it
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn:   conn,
		send:   make(chan Frame, sendBuffer),
		server: s,
		remote: conn.RemoteAddr().String(),
	}
	s.hub.register(cl)

	go cl.writePump()
	go cl.readPump()
}

// enqueue queues f without blocking. It returns false when the frame was
// dropped because the buffer is full.
func (c *client) enqueue(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// close stops the writer, which closes the socket
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) readPump() {
	defer func() {
		c.server.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Warn("websocket read failed", zap.String("remote", c.remote), zap.Error(err))
			}
			return
		}

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			c.sendError("", fmt.Sprintf("malformed frame: %v", err))
			continue
		}
		c.handleFrame(in)
	}
}

func (c *client) handleFrame(in inboundFrame) {
	switch in.Type {
	case FrameCall:
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		c.server.dispatch(in.Channel, in.Method, in.Args, channel.ReplyFunc(func(o channel.Outcome) {
			if !c.enqueue(replyFrame(id, o)) {
				c.server.log.Warn("client send buffer full, reply dropped",
					zap.String("remote", c.remote), zap.String("id", id))
			}
		}))
	default:
		c.sendError(in.ID, fmt.Sprintf("unknown frame type: %q", in.Type))
	}
}

func (c *client) sendError(id, message string) {
	c.enqueue(Frame{
		Type:  FrameError,
		ID:    id,
		Error: &FrameErr{Code: channel.CodeArgument, Message: message},
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				c.server.log.Warn("websocket write failed", zap.String("remote", c.remote), zap.Error(err))
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
