package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/iron-mask/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeSessionCompleted is sent when a relay session ends
	EventTypeSessionCompleted EventType = "session_completed"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	RequestID string    `json:"request_id,omitempty"`
}

// SessionEvent summarizes a finished relay session. It never carries
// payload text.
type SessionEvent struct {
	RequestID     string            `json:"request_id"`
	State         string            `json:"state"`
	Reason        string            `json:"reason,omitempty"`
	StatusCode    int               `json:"status_code"`
	ClientIP      string            `json:"client_ip"`
	Findings      []privacy.Finding `json:"findings"`
	TotalFindings int               `json:"total_findings"`
	BytesIn       int64             `json:"bytes_in"`
	BytesOut      int64             `json:"bytes_out"`
	DurationMS    float64           `json:"duration_ms"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string              `json:"type"`
	Data *SubscriptionRequest `json:"data,omitempty"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events    []EventType `json:"events"`
	RuleTypes []string    `json:"rule_types,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	mu           sync.RWMutex
	subscription *SubscriptionRequest
}

func (c *Client) subscribe(sub *SubscriptionRequest) {
	c.mu.Lock()
	c.subscription = sub
	c.mu.Unlock()
}

// wants reports whether the client's subscription lets event through
func (c *Client) wants(event Event) bool {
	c.mu.RLock()
	sub := c.subscription
	c.mu.RUnlock()

	if sub == nil {
		return true
	}

	subscribed := false
	for _, eventType := range sub.Events {
		if eventType == event.Type {
			subscribed = true
			break
		}
	}
	if !subscribed {
		return false
	}

	session, ok := event.Data.(SessionEvent)
	if !ok || len(sub.RuleTypes) == 0 {
		return true
	}
	for _, f := range session.Findings {
		for _, rule := range sub.RuleTypes {
			if f.EntityType == rule {
				return true
			}
		}
	}
	return false
}
