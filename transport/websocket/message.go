package websocket

import "encoding/json"

// Event names produced by the hub itself.
const (
	EventConnected = "connected"
	EventAck       = "ack"
	EventError     = "error"
)

// Inbound is a message received from a client.
type Inbound struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a message sent to a client.
type Outbound struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Connected is the payload of the connected event.
type Connected struct {
	ID string `json:"id"`
}

// Decode unmarshals the message data into v.
func (m *Inbound) Decode(v any) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(m.Data, v)
}
