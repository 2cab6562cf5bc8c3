// File: internal/api/websocket.go
package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 8192
	sendChannelSize = 64
)

// wsClient is one command socket. Frames are processed concurrently and each
// gets exactly one reply.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	send   chan WireResponse
	logger *zap.Logger

	inflight sync.WaitGroup
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
}

func (s *Server) handleCommandSocket(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("Failed to upgrade connection to WebSocket", zap.Error(err))
		return
	}
	s.logger.Info("WebSocket connection established.", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	c := &wsClient{
		server: s,
		conn:   conn,
		send:   make(chan WireResponse, sendChannelSize),
		logger: s.logger.With(zap.String("remote_addr", r.RemoteAddr)),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx)

	// 1. Abandon in-flight commands.
	cancel()
	// 2. Let them drain, then stop the writer.
	c.inflight.Wait()
	close(c.send)
	<-writerDone
}

func (c *wsClient) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req CommandRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			} else {
				c.logger.Info("WebSocket connection closed.")
			}
			return
		}

		if strings.TrimSpace(req.Command) == "" {
			c.queue(errorWire("The 'command' field is required."))
			continue
		}

		c.inflight.Add(1)
		go func(req CommandRequest) {
			defer c.inflight.Done()
			resp := c.server.commands.ProcessCommand(ctx, req.Command, req.ThreadID)
			c.queue(ToWire(resp))
		}(req)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("Error writing JSON message to WebSocket", zap.Error(err))
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

// queue hands msg to the writer, dropping it when the client is not keeping up.
func (c *wsClient) queue(msg WireResponse) {
	select {
	case c.send <- msg:
	default:
		c.logger.Error("WebSocket send buffer full, dropping message.", zap.String("type", msg.Type))
	}
}
