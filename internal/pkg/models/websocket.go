package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the JSON text frame exchanged on the tracking streams
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// NewMessage builds a frame of the given type with payload marshaled in.
// A nil payload produces a frame with no payload key.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("error marshaling message payload: %w", err)
	}
	msg.Payload = raw
	return msg, nil
}

// Time decodes the frame timestamp
func (m Message) Time() (time.Time, bool) {
	return ParseTimestamp(m.Timestamp)
}

// LocationReceivedPayload acknowledges a driver location_update
type LocationReceivedPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is the payload of an error frame
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ErrorText returns the error message carried by an error frame, either
// at the envelope level or in the payload.
func (m Message) ErrorText() string {
	if m.Message != "" {
		return m.Message
	}
	var p ErrorPayload
	if len(m.Payload) > 0 && json.Unmarshal(m.Payload, &p) == nil {
		return p.Message
	}
	return ""
}
