// Package protocol defines the envelope schema exchanged over the
// persistent WebSocket connection. Every message, both directions, is a
// JSON object with a required "kind" discriminator and a kind-specific
// data payload.
package protocol

import "encoding/json"

// Envelope is the unit of exchange on the wire.
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New builds an envelope with a marshalled payload.
func New(kind string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Kind: kind}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Data: raw}, nil
}

// MustNew is New for payloads that cannot fail to marshal (maps, structs
// of plain fields). It panics on marshal errors, which would indicate a
// programming bug rather than bad input.
func MustNew(kind string, payload any) Envelope {
	env, err := New(kind, payload)
	if err != nil {
		panic("protocol: marshal " + kind + ": " + err.Error())
	}
	return env
}

// Decode unmarshals the envelope data into target.
func (e Envelope) Decode(target any) error {
	if e.Data == nil {
		return json.Unmarshal([]byte("{}"), target)
	}
	return json.Unmarshal(e.Data, target)
}

// ErrorData is the payload of an "error" envelope. Code is a stable
// machine-readable string so clients can branch without parsing prose.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errorf builds an error envelope.
func Errorf(code, message string) Envelope {
	return MustNew(KindError, ErrorData{Code: code, Message: message})
}
