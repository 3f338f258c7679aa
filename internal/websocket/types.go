package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types sent to browsers.
const (
	TypeReload = "reload"
	TypeHello  = "hello"
)

// Client is one connected browser.
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	remoteAddr   string
	lastActivity time.Time
}

// Message is the JSON payload broadcast to browsers.
type Message struct {
	Type      string    `json:"type"`
	Revision  int       `json:"revision,omitempty"`
	Paths     []string  `json:"paths,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a connection origin is accepted.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// OriginValidatorFunc adapts a function to OriginValidator.
type OriginValidatorFunc func(origin string) bool

// IsAllowedOrigin implements OriginValidator.
func (f OriginValidatorFunc) IsAllowedOrigin(origin string) bool {
	return f(origin)
}
