package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Identity is the (username, token) pair a client may attach to a Hello.
type Identity struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// HelloRequest is the payload of a client Hello. It encodes as the JSON
// array [port, identity, staticPort], matching the externally-tagged tuple
// encoding the rest of the wire format uses.
type HelloRequest struct {
	Port       uint16
	Identity   *Identity
	StaticPort *uint16
}

// MarshalJSON implements the array encoding.
func (h HelloRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{h.Port, h.Identity, h.StaticPort})
}

// UnmarshalJSON implements the array decoding.
func (h *HelloRequest) UnmarshalJSON(data []byte) error {
	var raw [3]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal hello tuple: %w", err)
	}
	if err := json.Unmarshal(raw[0], &h.Port); err != nil {
		return fmt.Errorf("unmarshal hello port: %w", err)
	}
	if !isJSONNull(raw[1]) {
		var id Identity
		if err := json.Unmarshal(raw[1], &id); err != nil {
			return fmt.Errorf("unmarshal hello identity: %w", err)
		}
		h.Identity = &id
	} else {
		h.Identity = nil
	}
	if !isJSONNull(raw[2]) {
		var p uint16
		if err := json.Unmarshal(raw[2], &p); err != nil {
			return fmt.Errorf("unmarshal hello static port: %w", err)
		}
		h.StaticPort = &p
	} else {
		h.StaticPort = nil
	}
	return nil
}

// HelloReply is the payload of a server Hello: the bound address and port.
type HelloReply struct {
	Addr string
	Port uint16
}

func (h HelloReply) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{h.Addr, h.Port})
}

func (h *HelloReply) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal hello reply tuple: %w", err)
	}
	if err := json.Unmarshal(raw[0], &h.Addr); err != nil {
		return fmt.Errorf("unmarshal hello reply addr: %w", err)
	}
	if err := json.Unmarshal(raw[1], &h.Port); err != nil {
		return fmt.Errorf("unmarshal hello reply port: %w", err)
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// ClientMessage is the tagged union of messages a client sends on the
// control connection. Exactly one field is set.
type ClientMessage struct {
	Authenticate *string
	Hello        *HelloRequest
	Accept       *uuid.UUID
}

// NewAuthenticate builds a ClientMessage carrying an Authenticate tag.
func NewAuthenticate(tag string) ClientMessage { return ClientMessage{Authenticate: &tag} }

// NewClientHello builds a ClientMessage carrying a Hello request.
func NewClientHello(req HelloRequest) ClientMessage { return ClientMessage{Hello: &req} }

// NewAccept builds a ClientMessage claiming the parked connection id.
func NewAccept(id uuid.UUID) ClientMessage { return ClientMessage{Accept: &id} }

// MarshalJSON implements the externally-tagged union encoding.
func (m ClientMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.Authenticate != nil:
		return json.Marshal(map[string]string{"Authenticate": *m.Authenticate})
	case m.Hello != nil:
		return json.Marshal(map[string]HelloRequest{"Hello": *m.Hello})
	case m.Accept != nil:
		return json.Marshal(map[string]uuid.UUID{"Accept": *m.Accept})
	default:
		return nil, fmt.Errorf("client message: no variant set")
	}
}

// UnmarshalJSON implements the externally-tagged union decoding.
func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal client message: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("client message: expected exactly one variant, got %d", len(raw))
	}
	for tag, payload := range raw {
		switch tag {
		case "Authenticate":
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return fmt.Errorf("unmarshal Authenticate: %w", err)
			}
			m.Authenticate = &s
		case "Hello":
			var h HelloRequest
			if err := json.Unmarshal(payload, &h); err != nil {
				return fmt.Errorf("unmarshal Hello: %w", err)
			}
			m.Hello = &h
		case "Accept":
			var id uuid.UUID
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("unmarshal Accept: %w", err)
			}
			m.Accept = &id
		default:
			return fmt.Errorf("client message: unknown variant %q", tag)
		}
	}
	return nil
}

// Tag returns a short label for the set variant, for logging.
func (m ClientMessage) Tag() string {
	switch {
	case m.Authenticate != nil:
		return "Authenticate"
	case m.Hello != nil:
		return "Hello"
	case m.Accept != nil:
		return "Accept"
	default:
		return "none"
	}
}

// ServerMessage is the tagged union of messages a server sends on the
// control connection. Exactly one field is set (or Heartbeat is true).
type ServerMessage struct {
	Challenge  *uuid.UUID
	Hello      *HelloReply
	Heartbeat  bool
	Connection *uuid.UUID
	Error      *string
}

// NewChallenge builds a ServerMessage carrying a fresh challenge UUID.
func NewChallenge(id uuid.UUID) ServerMessage { return ServerMessage{Challenge: &id} }

// NewServerHello builds a ServerMessage reporting the bound tunnel address.
func NewServerHello(addr string, port uint16) ServerMessage {
	return ServerMessage{Hello: &HelloReply{Addr: addr, Port: port}}
}

// NewHeartbeat builds a unit Heartbeat ServerMessage.
func NewHeartbeat() ServerMessage { return ServerMessage{Heartbeat: true} }

// NewConnection builds a ServerMessage announcing a parked connection id.
func NewConnection(id uuid.UUID) ServerMessage { return ServerMessage{Connection: &id} }

// NewError builds a fatal ServerMessage carrying a human-readable message.
func NewError(msg string) ServerMessage { return ServerMessage{Error: &msg} }

// MarshalJSON implements the externally-tagged union encoding. Heartbeat,
// a unit variant, encodes as the bare JSON string "Heartbeat".
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.Challenge != nil:
		return json.Marshal(map[string]uuid.UUID{"Challenge": *m.Challenge})
	case m.Hello != nil:
		return json.Marshal(map[string]HelloReply{"Hello": *m.Hello})
	case m.Heartbeat:
		return json.Marshal("Heartbeat")
	case m.Connection != nil:
		return json.Marshal(map[string]uuid.UUID{"Connection": *m.Connection})
	case m.Error != nil:
		return json.Marshal(map[string]string{"Error": *m.Error})
	default:
		return nil, fmt.Errorf("server message: no variant set")
	}
}

// UnmarshalJSON implements the externally-tagged union decoding.
func (m *ServerMessage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return fmt.Errorf("unmarshal server message tag: %w", err)
		}
		if tag != "Heartbeat" {
			return fmt.Errorf("server message: unknown unit variant %q", tag)
		}
		m.Heartbeat = true
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal server message: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("server message: expected exactly one variant, got %d", len(raw))
	}
	for tag, payload := range raw {
		switch tag {
		case "Challenge":
			var id uuid.UUID
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("unmarshal Challenge: %w", err)
			}
			m.Challenge = &id
		case "Hello":
			var h HelloReply
			if err := json.Unmarshal(payload, &h); err != nil {
				return fmt.Errorf("unmarshal Hello: %w", err)
			}
			m.Hello = &h
		case "Connection":
			var id uuid.UUID
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("unmarshal Connection: %w", err)
			}
			m.Connection = &id
		case "Error":
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return fmt.Errorf("unmarshal Error: %w", err)
			}
			m.Error = &s
		default:
			return fmt.Errorf("server message: unknown variant %q", tag)
		}
	}
	return nil
}

// Tag returns a short label for the set variant, for logging.
func (m ServerMessage) Tag() string {
	switch {
	case m.Challenge != nil:
		return "Challenge"
	case m.Hello != nil:
		return "Hello"
	case m.Heartbeat:
		return "Heartbeat"
	case m.Connection != nil:
		return "Connection"
	case m.Error != nil:
		return "Error"
	default:
		return "none"
	}
}
