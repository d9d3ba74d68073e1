package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a wire envelope on the tracking stream.
type MessageType string

const (
	MessageTypeConnectionEstablished MessageType = "connection_established"
	MessageTypeTrackingUpdate        MessageType = "tracking_update"
	MessageTypeStatusUpdate          MessageType = "status_update"
	MessageTypePong                  MessageType = "pong"
	MessageTypeSystemStatus          MessageType = "system_status"
	MessageTypeControl               MessageType = "control_message"

	// Outbound control message types.
	MessageTypePing              MessageType = "ping"
	MessageTypeSubscribeTracking MessageType = "subscribe_tracking"
	MessageTypeUnsubscribe       MessageType = "unsubscribe_tracking"
	MessageTypeRequestStatus     MessageType = "request_status"
)

// Envelope is the text-frame wire format exchanged with the tracking server.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope with the current timestamp. The payload is
// marshalled immediately so a send failure surfaces at build time.
func NewEnvelope(t MessageType, payload any) (*Envelope, error) {
	env := &Envelope{Type: t, Timestamp: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		env.Payload = raw
	}
	return env, nil
}

// ControlMessage returns a payload-free envelope for outbound control types
// (ping, subscribe_tracking, unsubscribe_tracking, request_status).
func ControlMessage(t MessageType) *Envelope {
	return &Envelope{Type: t, Timestamp: time.Now().UTC()}
}

// ParseEnvelope decodes a text frame. A frame without a type field is
// malformed; an unrecognized type is not (routing decides what to do with it).
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type field")
	}
	return &env, nil
}
