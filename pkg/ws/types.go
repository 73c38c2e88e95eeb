package ws

import (
	"encoding/json"
	"time"
)

// Event types sent over the feed socket
const (
	TypePost  = "post"
	TypePing  = "ping"
	TypePong  = "pong"
	TypeHello = "hello"
	TypeError = "error"
)

// Message is the frame exchanged with feed clients
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
	SentAt  time.Time       `json:"sentAt"`
}

// Encode builds a frame carrying content marshalled as JSON
func Encode(msgType string, content any, now time.Time) ([]byte, error) {
	msg := Message{Type: msgType, SentAt: now.UTC()}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, err
		}
		msg.Content = raw
	}
	return json.Marshal(msg)
}
