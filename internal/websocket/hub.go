// Package websocket runs the live reload hub: browsers connect over a
// websocket and are told to reload when the project sources change.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/jah/internal/logging"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Hub tracks connected browsers and fans messages out to them. A single
// goroutine owns registration and broadcasting.
type Hub struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
	done         chan struct{}
}

// NewHub starts a hub. A nil validator accepts every origin.
func NewHub(originValidator OriginValidator, logger logging.Logger) *Hub {
	if originValidator == nil {
		originValidator = OriginValidatorFunc(func(string) bool { return true })
	}
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, 64),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		logger:          logger.WithComponent("livereload"),
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	go h.run()

	return h
}

// ServeHTTP upgrades the request and registers the browser.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && !h.originValidator.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "Live reload connection rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// origins are checked above
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:         conn,
		send:         make(chan []byte, 16),
		remoteAddr:   r.RemoteAddr,
		lastActivity: time.Now(),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		return
	}

	h.handleClient(client)
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(h.ctx, "Browser connected", "remote", client.remoteAddr, "clients", count)

		case conn := <-h.unregister:
			h.unregisterClient(conn)

		case message := <-h.broadcast:
			h.broadcastToClients(message)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) unregisterClient(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	client, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
		close(client.send)
	}
	count := len(h.clients)
	h.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug(h.ctx, "Browser disconnected", "remote", client.remoteAddr, "clients", count)
	}
}

func (h *Hub) broadcastToClients(message []byte) {
	h.clientsMutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMutex.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// slow browser, drop it
			go h.drop(client.conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}

// handleClient runs the write pump and blocks on the read side until the
// browser goes away.
func (h *Hub) handleClient(client *Client) {
	defer h.drop(client.conn)

	go h.writeToClient(client)

	for {
		if _, _, err := client.conn.Read(h.ctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && websocket.CloseStatus(err) != websocket.StatusGoingAway {
				h.logger.Debug(h.ctx, "Live reload read ended", "remote", client.remoteAddr, "error", err.Error())
			}

			return
		}
		client.lastActivity = time.Now()
	}
}

func (h *Hub) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-h.ctx.Done():
			return
		}
	}
}

// Broadcast sends msg to every connected browser. It never blocks; the
// message is dropped when the hub is saturated or shut down.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal live reload message")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(h.ctx, nil, "Live reload queue full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	return len(h.clients)
}

// Shutdown stops the hub and disconnects every browser.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.isShutdown.Store(true)
		h.cancel()
	})

	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// the hub goroutine has exited, nothing else sends to the clients
	h.clientsMutex.Lock()
	for conn, client := range h.clients {
		close(client.send)
		_ = conn.Close(websocket.StatusGoingAway, "Server shutdown")
	}
	h.clients = make(map[*websocket.Conn]*Client)
	h.clientsMutex.Unlock()

	return nil
}

// IsShutdown reports whether Shutdown was called.
func (h *Hub) IsShutdown() bool {
	return h.isShutdown.Load()
}
