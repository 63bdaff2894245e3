package channels

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sipeed/driveclaw/pkg/bus"
	"github.com/sipeed/driveclaw/pkg/config"
	"github.com/sipeed/driveclaw/pkg/logger"
)

// wsIncoming is the JSON message a client sends to driveclaw.
type wsIncoming struct {
	Content  string `json:"content"`
	SenderID string `json:"sender_id,omitempty"`
}

// wsOutgoing is the JSON reply sent back to the client.
type wsOutgoing struct {
	Content string `json:"content"`
}

// WebSocketChannel is a local WebSocket server, mainly for development and
// driving the assistant without a messaging account.
type WebSocketChannel struct {
	*BaseChannel
	config    config.WebSocketConfig
	server    *http.Server
	upgrader  websocket.Upgrader
	chatConns map[string]*websocket.Conn
	mu        sync.RWMutex
}

func NewWebSocketChannel(cfg config.WebSocketConfig, msgBus *bus.MessageBus) (*WebSocketChannel, error) {
	base := NewBaseChannel("websocket", msgBus, cfg.AllowFrom)

	return &WebSocketChannel{
		BaseChannel: base,
		config:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		chatConns: make(map[string]*websocket.Conn),
	}, nil
}

func (c *WebSocketChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(c.config.Path, c.handleWS)

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	c.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	c.setRunning(true)
	logger.InfoCF("websocket", "WebSocket server listening", map[string]any{
		"addr": addr,
		"path": c.config.Path,
	})

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("websocket", "Server error", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

func (c *WebSocketChannel) Stop(ctx context.Context) error {
	c.setRunning(false)

	c.mu.Lock()
	for _, conn := range c.chatConns {
		conn.Close()
	}
	c.chatConns = make(map[string]*websocket.Conn)
	c.mu.Unlock()

	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

func (c *WebSocketChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("websocket channel not running")
	}

	c.mu.RLock()
	conn, ok := c.chatConns[msg.ChatID]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no connection for chat %s", msg.ChatID)
	}
	return conn.WriteJSON(wsOutgoing{Content: msg.Content})
}

func (c *WebSocketChannel) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("websocket", "Upgrade failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	remote := conn.RemoteAddr().String()
	logger.InfoCF("websocket", "Client connected", map[string]any{
		"remote": remote,
	})

	defer func() {
		c.mu.Lock()
		for chatID, cn := range c.chatConns {
			if cn == conn {
				delete(c.chatConns, chatID)
			}
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		var in wsIncoming
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Content == "" {
			continue
		}

		senderID := in.SenderID
		if senderID == "" {
			senderID = remote
		}

		c.mu.Lock()
		c.chatConns[senderID] = conn
		c.mu.Unlock()

		c.HandleMessage(senderID, senderID, in.Content, nil)
	}
}
