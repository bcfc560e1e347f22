// Package server defines the wire envelope shared by client and hub logic,
// plus small helpers reused across the transport layer.
package server

import (
	"encoding/json"
	"log"
	"strings"

	"chat-relay/internal/relay"
)

// Inbound event names understood by the hub. Outbound names live in the
// relay package; "message" and "activity" appear in both directions.
const (
	eventCreateRoom = "createRoom"
	eventEnterRoom  = "enterRoom"
	eventMessage    = "message"
	eventActivity   = "activity"
	eventAck        = "ack"
)

// Envelope is the JSON frame exchanged over a connection: a named event
// with its payload. ID is an optional client-chosen correlation token;
// when present on a join or create request, the server echoes it on the
// ack reply.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    *int64          `json:"id,omitempty"`
}

// outEnvelope is the outbound counterpart; Data is marshaled in place.
type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	ID    *int64 `json:"id,omitempty"`
}

// joinRequest is the payload of createRoom and enterRoom.
type joinRequest struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// messageRequest is the payload of an inbound chat message.
type messageRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// activityRequest is the payload of an inbound typing notice.
type activityRequest struct {
	Name string `json:"name"`
}

// ackResponse is the ack payload: empty on success, an error message on a
// rejected join or create.
type ackResponse struct {
	Error string `json:"error,omitempty"`
}

func encodeEvent(event relay.Event) ([]byte, bool) {
	payload, err := json.Marshal(outEnvelope{Event: event.Name, Data: event.Data})
	if err != nil {
		log.Printf("Error encoding %s event: %v", event.Name, err)
		return nil, false
	}
	return payload, true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
