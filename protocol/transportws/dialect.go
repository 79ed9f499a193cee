// Package transportws implements the newer graphql-transport-ws
// subprotocol (spec.md §4.6): subscribe/complete instead of start/stop,
// bidirectional ping/pong instead of a unidirectional keepalive, and no
// connection_terminate message. It follows the same envelope/Dialect shape
// as protocol/apollows, adapted from the teacher's OperationMessage
// structure to this protocol's vocabulary.
package transportws

import (
	"encoding/json"
	"fmt"

	"github.com/kalverra/gqlrealtime/gqlerrs"
	"github.com/kalverra/gqlrealtime/transport"
)

type messageType string

const (
	typeConnectionInit messageType = "connection_init"
	typeConnectionAck  messageType = "connection_ack"
	typeSubscribe      messageType = "subscribe"
	typeNext           messageType = "next"
	typeError          messageType = "error"
	typeComplete       messageType = "complete"
	typePing           messageType = "ping"
	typePong           messageType = "pong"
)

type envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    messageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type nextPayload struct {
	Data       json.RawMessage             `json:"data"`
	Errors     []gqlerrs.GraphQLErrorEntry `json:"errors,omitempty"`
	Extensions map[string]any              `json:"extensions,omitempty"`
}

// Dialect implements transport.Dialect for graphql-transport-ws.
type Dialect struct{}

func New() *Dialect { return &Dialect{} }

func (d *Dialect) Subprotocol() string { return "graphql-transport-ws" }

func (d *Dialect) EncodeInit(payload []byte) ([]byte, error) {
	return json.Marshal(envelope{Type: typeConnectionInit, Payload: rawOrNil(payload)})
}

func (d *Dialect) EncodeStart(id string, req transport.Request) ([]byte, error) {
	payload, err := json.Marshal(subscribePayload{
		Query:         req.Query,
		Variables:     req.Variables,
		OperationName: req.OperationName,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{ID: id, Type: typeSubscribe, Payload: payload})
}

func (d *Dialect) EncodeStop(id string) ([]byte, error) {
	return json.Marshal(envelope{ID: id, Type: typeComplete})
}

// EncodeTerminate: graphql-transport-ws has no connection-level terminate
// message — shutdown is handled through complete messages and the socket
// close, and liveness through ping/pong.
func (d *Dialect) EncodeTerminate() ([]byte, bool) { return nil, false }

func (d *Dialect) HasUnidirectionalKeepAlive() bool { return false }

func (d *Dialect) HasPing() bool { return true }

func (d *Dialect) EncodePing(payload []byte) ([]byte, error) {
	return json.Marshal(envelope{Type: typePing, Payload: rawOrNil(payload)})
}

func (d *Dialect) EncodePong(payload []byte) ([]byte, error) {
	return json.Marshal(envelope{Type: typePong, Payload: rawOrNil(payload)})
}

func (d *Dialect) Decode(raw []byte) (transport.Envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "malformed JSON frame", Cause: err}
	}

	switch env.Type {
	case typeConnectionAck:
		return transport.Envelope{Kind: transport.KindAck, Payload: env.Payload}, nil

	case typePing:
		return transport.Envelope{Kind: transport.KindPing, Payload: env.Payload}, nil

	case typePong:
		return transport.Envelope{Kind: transport.KindPong, Payload: env.Payload}, nil

	case typeNext:
		if env.ID == "" {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "next message missing id"}
		}
		var np nextPayload
		if err := json.Unmarshal(env.Payload, &np); err != nil {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "malformed next payload", Cause: err}
		}
		if np.Data == nil && len(np.Errors) == 0 {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "next payload has neither data nor errors"}
		}
		return transport.Envelope{
			Kind:       transport.KindData,
			ID:         env.ID,
			Payload:    np.Data,
			Errors:     np.Errors,
			Extensions: np.Extensions,
		}, nil

	case typeError:
		// Per spec.md §4.6, the error message's payload is the errors array
		// directly, not a single object.
		if env.ID == "" {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "error message missing id"}
		}
		var errs []gqlerrs.GraphQLErrorEntry
		if err := json.Unmarshal(env.Payload, &errs); err != nil {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "malformed error payload", Cause: err}
		}
		return transport.Envelope{Kind: transport.KindQueryError, ID: env.ID, Errors: errs}, nil

	case typeComplete:
		if env.ID == "" {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "complete message missing id"}
		}
		return transport.Envelope{Kind: transport.KindComplete, ID: env.ID}, nil

	default:
		return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: fmt.Sprintf("unrecognized message type %q", env.Type)}
	}
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return b
}
