package appsync

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/kalverra/gqlrealtime/gqlerrs"
	"github.com/kalverra/gqlrealtime/protocol/apollows"
	"github.com/kalverra/gqlrealtime/transport"
)

// Dialect wraps the Apollo legacy dialect by composition (per the design
// notes: prefer composition over deep inheritance) and overrides EncodeStart
// to inject AppSync's per-operation signed authorization extension, and
// Decode to treat start_ack as benign and an id-less error as a
// connection-scope ServerError.
//
// AppSync's own wire protocol expects a UUID as the per-subscription id
// rather than the small sequential integers the rest of this module uses
// internally, so EncodeStart mints one with github.com/google/uuid and
// records the uuid-to-internal-id correlation in a SubscriptionRecord;
// Decode translates it back before handing the envelope up to Transport,
// which still multiplexes purely on its own integer ids.
type Dialect struct {
	*apollows.Dialect
	Auth Authenticator

	record *SubscriptionRecord
}

// New builds the AppSync dialect atop a fresh Apollo dialect, per spec.md
// §4.7 ("atop Apollo protocol").
func New(auth Authenticator) *Dialect {
	return &Dialect{Dialect: apollows.New(), Auth: auth, record: NewSubscriptionRecord()}
}

type operationData struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type startEnvelope struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Payload startPayload `json:"payload"`
}

type startPayload struct {
	Data       string          `json:"data"`
	Extensions startExtensions `json:"extensions"`
}

type startExtensions struct {
	Authorization map[string]string `json:"authorization"`
}

// EncodeStart builds the AppSync-flavored start message: payload.data is
// the stringified {query,variables,operationName}, and
// payload.extensions.authorization is the per-operation signed header set.
// The wire id is a freshly minted UUID, correlated back to Transport's
// internal id via the SubscriptionRecord so Decode can translate server
// messages back to it.
func (d *Dialect) EncodeStart(id string, req transport.Request) ([]byte, error) {
	internalID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, &gqlerrs.ProtocolError{Reason: "appsync: non-integer internal id", Cause: err}
	}

	dataJSON, err := json.Marshal(operationData{
		Query:         req.Query,
		Variables:     req.Variables,
		OperationName: req.OperationName,
	})
	if err != nil {
		return nil, err
	}

	authHeaders, err := d.Auth.HeadersForOperation(context.Background(), string(dataJSON))
	if err != nil {
		return nil, err
	}

	wireID := uuid.New().String()
	d.record.Put(wireID, internalID)

	return json.Marshal(startEnvelope{
		ID:   wireID,
		Type: "start",
		Payload: startPayload{
			Data:       string(dataJSON),
			Extensions: startExtensions{Authorization: authHeaders},
		},
	})
}

// EncodeStop translates the Transport-internal id back to the wire UUID
// minted in EncodeStart before delegating to the embedded Apollo dialect.
func (d *Dialect) EncodeStop(id string) ([]byte, error) {
	internalID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, &gqlerrs.ProtocolError{Reason: "appsync: non-integer internal id", Cause: err}
	}
	wireID, ok := d.record.LookupByQuery(internalID)
	if !ok {
		wireID = id // never started or already cleaned up; best effort
	}
	return d.Dialect.EncodeStop(wireID)
}

// Decode extends the Apollo decode with two AppSync-specific rules: a
// start_ack message is a benign per-subscription acknowledgment, and an
// error message with no id is a connection-scope ServerError rather than a
// protocol violation (the Apollo dialect requires ids on "error").
func (d *Dialect) Decode(raw []byte) (transport.Envelope, error) {
	var probe struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return transport.Envelope{}, &gqlerrs.ProtocolError{Reason: "malformed JSON frame", Cause: err}
	}

	switch probe.Type {
	case "start_ack":
		return transport.Envelope{Kind: transport.KindStartAck, ID: d.translate(probe.ID)}, nil
	case "error":
		if probe.ID == "" {
			var payload json.RawMessage
			var full struct {
				Payload json.RawMessage `json:"payload"`
			}
			_ = json.Unmarshal(raw, &full)
			payload = full.Payload
			return transport.Envelope{Kind: transport.KindServerError, Payload: payload}, nil
		}
	}

	env, err := d.Dialect.Decode(raw)
	if err != nil {
		return env, err
	}
	env.ID = d.translate(env.ID)
	if env.Kind == transport.KindComplete || env.Kind == transport.KindQueryError {
		d.record.Delete(probe.ID)
	}
	return env, nil
}

// translate maps a server-supplied wire id (the UUID minted in EncodeStart)
// back to the Transport-internal integer id string it was registered under.
// Unrecognized ids pass through unchanged.
func (d *Dialect) translate(wireID string) string {
	if wireID == "" {
		return wireID
	}
	if internalID, ok := d.record.Lookup(wireID); ok {
		return strconv.FormatInt(internalID, 10)
	}
	return wireID
}
