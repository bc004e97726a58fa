// Package protocol defines the WebSocket message types for Gateway ↔ Agent
// communication. All messages are JSON-encoded and wrapped in an Envelope
// for uniform routing.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of message in the WebSocket protocol.
type MessageType string

const (
	// Agent → Gateway
	MsgAgentRegister  MessageType = "agent.register"
	MsgAgentHeartbeat MessageType = "agent.heartbeat"
	MsgAdvertise      MessageType = "action.advertise"
	MsgWithdraw       MessageType = "action.withdraw"

	// Gateway → Agent
	MsgRegistered MessageType = "gateway.registered"
	MsgAccepted   MessageType = "gateway.accepted"
	MsgPing       MessageType = "gateway.ping"
	MsgPong       MessageType = "gateway.pong"

	// Bidirectional
	MsgError MessageType = "error"
)

// Envelope is the top-level message wrapper for all WebSocket communication.
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"` // Message ID for correlation and deduplication.
	AgentID   string          `json:"agent_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope creates an Envelope with a fresh ID and current timestamp.
func NewEnvelope(msgType MessageType, payload any) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Envelope{
		Type:      msgType,
		ID:        uuid.New().String(),
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the Payload into the given target.
func (e *Envelope) Decode(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// --- Agent → Gateway payloads ---

// AgentHello is sent with MsgAgentRegister when an agent connects. The
// initial advertisements ride along so a reconnecting agent repopulates the
// catalog in one round trip.
type AgentHello struct {
	AgentID        string          `json:"agent_id"`
	Version        string          `json:"version"`
	TTLSeconds     int             `json:"ttl_seconds,omitempty"` // Advertisement TTL; 0 = no expiry.
	Advertisements []ActionOffer   `json:"advertisements,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// ActionOffer is one action being advertised, sent inside AgentHello or with
// MsgAdvertise.
type ActionOffer struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Similes      []string `json:"similes,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// WithdrawPayload is sent with MsgWithdraw to retract an advertised action.
type WithdrawPayload struct {
	Name string `json:"name"`
}

// HeartbeatPayload is sent with MsgAgentHeartbeat periodically. Each
// heartbeat refreshes the TTL on all of the agent's advertisements.
type HeartbeatPayload struct {
	ActiveActions int `json:"active_actions"`
}

// --- Gateway → Agent payloads ---

// RegisteredPayload is sent with MsgRegistered to confirm agent registration.
type RegisteredPayload struct {
	Message    string `json:"message"`
	Registered int    `json:"registered"` // Advertisements accepted from the hello.
	Rejected   int    `json:"rejected"`   // Advertisements that failed validation.
}

// AcceptedPayload acknowledges a single advertise or withdraw message.
type AcceptedPayload struct {
	Name string `json:"name"`
}

// ErrorPayload is sent with MsgError for protocol-level errors.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
