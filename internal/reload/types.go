package reload

import (
	"time"

	"github.com/coder/websocket"
)

// Message types understood by the client script.
const (
	MessageReload = "reload"
	MessageInject = "inject"
	MessageNotify = "notify"
)

// Message is sent to every connected browser as JSON.
type Message struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// client is one connected browser.
type client struct {
	conn *websocket.Conn
	send chan []byte
}
