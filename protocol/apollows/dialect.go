// Package apollows implements the legacy Apollo "graphql-ws" subprotocol
// (spec.md §4.5), originally shipped by Apollo as
// subscriptions-transport-ws. The message type vocabulary here is lifted
// directly from the teacher's OperationMessageType constants
// (InoiOy/go-graphql-client/subscription.go): connection_init, start, stop,
// connection_terminate, ka, connection_ack, data, error, complete,
// connection_error.
package apollows

import (
	"encoding/json"
	"fmt"

	"github.com/kalverra/gqlrealtime/gqlerrs"
	"github.com/kalverra/gqlrealtime/transport"
)

// messageType is the wire "type" field, renamed from the teacher's
// OperationMessageType for this package's own vocabulary.
type messageType string

const (
	typeConnectionInit      messageType = "connection_init"
	typeConnectionAck       messageType = "connection_ack"
	typeConnectionError     messageType = "connection_error"
	typeStart               messageType = "start"
	typeStop                messageType = "stop"
	typeConnectionTerminate messageType = "connection_terminate"
	typeKeepAlive           messageType = "ka"
	typeData                messageType = "data"
	typeError               messageType = "error"
	typeComplete            messageType = "complete"
)

// envelope is the JSON shape in spec.md §4.3: {id?, type, payload?}.
type envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    messageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// startPayload is the payload of a "start" message.
type startPayload struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// dataPayload is the payload of a "data" message: an Execution Result.
type dataPayload struct {
	Data       json.RawMessage             `json:"data"`
	Errors     []gqlerrs.GraphQLErrorEntry `json:"errors,omitempty"`
	Extensions map[string]any              `json:"extensions,omitempty"`
}

// errorPayload is the payload of a per-operation "error" message: a single
// error object, per spec.md §4.3 ("An error payload is surfaced as a
// QueryError carrying the errors array and the id").
type errorPayload struct {
	Message   string         `json:"message"`
	Locations []gqlerrs.ErrorLoc `json:"locations,omitempty"`
	Path      []interface{}  `json:"path,omitempty"`
}

// Dialect implements transport.Dialect for the Apollo legacy protocol.
type Dialect struct{}

// New returns the Apollo dialect. It carries no state of its own.
func New() *Dialect { return &Dialect{} }

func (d *Dialect) Subprotocol() string { return "graphql-ws" }

func (d *Dialect) EncodeInit(payload []byte) ([]byte, error) {
	return json.Marshal(envelope{Type: typeConnectionInit, Payload: rawOrNil(payload)})
}

func (d *Dialect) EncodeStart(id string, req transport.Request) ([]byte, error) {
	payload, err := json.Marshal(startPayload{
		Query:         req.Query,
		Variables:     req.Variables,
		OperationName: req.OperationName,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{ID: id, Type: typeStart, Payload: payload})
}

func (d *Dialect) EncodeStop(id string) ([]byte, error) {
	return json.Marshal(envelope{ID: id, Type: typeStop})
}

func (d *Dialect) EncodeTerminate() ([]byte, bool) {
	frame, err := json.Marshal(envelope{Type: typeConnectionTerminate})
	if err != nil {
		return nil, false
	}
	return frame, true
}

func (d *Dialect) HasUnidirectionalKeepAlive() bool { return true }

func (d *Dialect) HasPing() bool { return false }

func (d *Dialect) EncodePing(payload []byte) ([]byte, error) {
	return nil, fmt.Errorf("apollows: protocol has no client-initiated ping")
}

func (d *Dialect) EncodePong(payload []byte) ([]byte, error) {
	return nil, fmt.Errorf("apollows: protocol has no pong reply")
}

func (d *Dialect) Decode(raw []byte) (transport.Envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "malformed JSON frame", Cause: err}
	}

	switch env.Type {
	case typeConnectionAck:
		return transport.Envelope{Kind: transport.KindAck, Payload: env.Payload}, nil

	case typeKeepAlive:
		return transport.Envelope{Kind: transport.KindKeepAlive}, nil

	case typeData:
		if env.ID == "" {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "data message missing id"}
		}
		var dp dataPayload
		if err := json.Unmarshal(env.Payload, &dp); err != nil {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "malformed data payload", Cause: err}
		}
		if dp.Data == nil && len(dp.Errors) == 0 {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "data payload has neither data nor errors"}
		}
		return transport.Envelope{
			Kind:       transport.KindData,
			ID:         env.ID,
			Payload:    dp.Data,
			Errors:     dp.Errors,
			Extensions: dp.Extensions,
		}, nil

	case typeError:
		if env.ID == "" {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "error message missing id"}
		}
		var ep errorPayload
		if err := json.Unmarshal(env.Payload, &ep); err != nil {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "malformed error payload", Cause: err}
		}
		return transport.Envelope{
			Kind: transport.KindQueryError,
			ID:   env.ID,
			Errors: []gqlerrs.GraphQLErrorEntry{{
				Message:   ep.Message,
				Locations: ep.Locations,
				Path:      ep.Path,
			}},
		}, nil

	case typeComplete:
		if env.ID == "" {
			return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "complete message missing id"}
		}
		return transport.Envelope{Kind: transport.KindComplete, ID: env.ID}, nil

	case typeConnectionError:
		return transport.Envelope{Kind: transport.KindServerError, Payload: env.Payload}, nil

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
