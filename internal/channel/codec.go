package channel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/stemx/internal/session"
)

// Server → client event names.
const (
	EventStatus   = "processing_status"
	EventComplete = "processing_complete"
	EventError    = "processing_error"
)

// Engine.IO packet types (first byte of every frame).
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO packet types (second byte of an Engine.IO message).
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// openPacket is the Engine.IO handshake payload.
type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// envelope is a frame of the plain JSON protocol.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// payload is the union of every event body the backend sends.
type payload struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// toEvent maps a named server event to a session event. ok is false for events the client does not consume.
func toEvent(name string, data json.RawMessage) (ev session.Event, ok bool, err error) {
	var p payload
	if len(bytes.TrimSpace(data)) > 0 && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		if err := json.Unmarshal(data, &p); err != nil {
			return session.Event{}, false, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
	}

	switch name {
	case EventStatus:
		return session.ProgressEvent(session.FromChannel, p.JobID, p.Message), true, nil
	case EventComplete:
		return session.CompleteEvent(session.FromChannel, p.JobID), true, nil
	case EventError:
		return session.FailureEvent(session.FromChannel, p.JobID, p.Error), true, nil
	default:
		return session.Event{}, false, nil
	}
}

// decodeEnvelope parses a JSON protocol frame.
func decodeEnvelope(raw []byte) (string, json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("malformed envelope: missing event name")
	}
	return env.Event, env.Data, nil
}

// decodeSocketIOEvent parses the body of a Socket.IO EVENT packet (everything after "42").
//
// The body may carry a namespace ("/ns,") and an ack id before the JSON array: ["name", data, ...].
func decodeSocketIOEvent(body []byte) (string, json.RawMessage, error) {
	if len(body) > 0 && body[0] == '/' {
		idx := bytes.IndexByte(body, ',')
		if idx < 0 {
			return "", nil, fmt.Errorf("malformed event: unterminated namespace")
		}
		body = body[idx+1:]
	}
	for len(body) > 0 && body[0] >= '0' && body[0] <= '9' {
		body = body[1:]
	}

	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return "", nil, fmt.Errorf("malformed event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("malformed event: empty argument list")
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("malformed event name: %w", err)
	}

	var data json.RawMessage
	if len(args) > 1 {
		data = args[1]
	}
	return name, data, nil
}

// EncodeSocketIOEvent builds a Socket.IO EVENT frame. Used by fakes and tests.
func EncodeSocketIOEvent(name string, data any) ([]byte, error) {
	body, err := json.Marshal([]any{name, data})
	if err != nil {
		return nil, err
	}
	return append([]byte{eioMessage, sioEvent}, body...), nil
}

// EncodeEnvelope builds a JSON protocol frame. Used by fakes and tests.
func EncodeEnvelope(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: name, Data: raw})
}
