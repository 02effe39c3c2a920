// Package bus carries session broadcasts and private player messages.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const defaultBuffer = 32

// Message is the envelope every topic carries.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals data into an envelope.
func NewMessage(msgType, sessionID string, data any) (Message, error) {
	msg := Message{Type: msgType, SessionID: sessionID}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	msg.Data = raw
	return msg, nil
}

// Decode unmarshals the payload.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bus is a topic keyed publish/subscribe channel.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
}

func SessionTopic(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func PlayerTopic(sessionID, playerID string) string {
	return fmt.Sprintf("session:%s:player:%s", sessionID, playerID)
}

// Subscription delivers messages until Close is called.
type Subscription struct {
	ch      chan Message
	once    sync.Once
	onClose func()
}

func newSubscription(buffer int, onClose func()) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Subscription{ch: make(chan Message, buffer), onClose: onClose}
}

// C is closed once the subscription ends.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}
