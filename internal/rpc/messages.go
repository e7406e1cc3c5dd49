package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Handshake is the body of the opening OpHandshake frame.
type Handshake struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

// Command is an outgoing OpFrame body.
type Command struct {
	Cmd   string      `json:"cmd"`
	Args  interface{} `json:"args"`
	Nonce string      `json:"nonce"`
}

// SetActivityArgs are the arguments of SET_ACTIVITY. A nil Activity clears
// the presence.
type SetActivityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

// Message is an incoming OpFrame body.
type Message struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt,omitempty"`
	Nonce string          `json:"nonce,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ReadyData is the payload of the READY dispatch.
type ReadyData struct {
	Version int   `json:"v"`
	User    *User `json:"user,omitempty"`
}

// User is the Discord user the client is logged in as.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
}

// NewCommand builds a command with a fresh nonce.
func NewCommand(cmd string, args interface{}) *Command {
	return &Command{
		Cmd:   cmd,
		Args:  args,
		Nonce: uuid.NewString(),
	}
}

// Encode serializes the command to JSON.
func (c *Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Encode serializes the handshake to JSON.
func (h *Handshake) Encode() ([]byte, error) {
	return json.Marshal(h)
}

// DecodeMessage parses an OpFrame body.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// IsError reports whether the message is an ERROR event.
func (m *Message) IsError() bool {
	return m.Evt == EvtError
}

// Err returns the *Error carried by an ERROR event, or nil.
func (m *Message) Err() error {
	if !m.IsError() {
		return nil
	}
	e := &Error{}
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, e); err != nil {
			return fmt.Errorf("decode error event: %w", err)
		}
	}
	return e
}

// ReadyData decodes the READY payload.
func (m *Message) ReadyData() (*ReadyData, error) {
	var ready ReadyData
	if len(m.Data) == 0 {
		return &ready, nil
	}
	if err := json.Unmarshal(m.Data, &ready); err != nil {
		return nil, fmt.Errorf("decode ready: %w", err)
	}
	return &ready, nil
}

// decodeClose parses the body of an OpClose frame into a closing *Error.
func decodeClose(body []byte) *Error {
	e := &Error{closed: true}
	if len(body) > 0 {
		// Unparseable close bodies still close the connection.
		_ = json.Unmarshal(body, e)
	}
	return e
}
