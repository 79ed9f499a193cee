package transport

// Request is the wire-agnostic shape of one GraphQL operation. It is built
// once by the caller (or by Client) and never mutated afterward.
type Request struct {
	Query         string
	Variables     map[string]interface{}
	OperationName string
	// Extensions carries transport-specific metadata a Dialect may consult,
	// e.g. AppSync signed-header material attached by the appsync package.
	Extensions map[string]interface{}
}

// Dialect is the composition seam described in the design notes: Transport
// holds exactly one Dialect and never subclasses itself per-protocol.
// Implementations exist for the Apollo legacy protocol, graphql-transport-ws,
// and the AppSync realtime variant (which wraps the Apollo dialect).
type Dialect interface {
	// Subprotocol is the token sent in the Sec-WebSocket-Protocol header.
	Subprotocol() string

	// EncodeInit builds the connection_init frame. payload may be nil.
	EncodeInit(payload []byte) ([]byte, error)

	// EncodeStart builds the start/subscribe frame for a freshly allocated
	// query id.
	EncodeStart(id string, req Request) ([]byte, error)

	// EncodeStop builds the stop/complete frame for an id. Every dialect in
	// this module has one.
	EncodeStop(id string) ([]byte, error)

	// EncodeTerminate builds the connection-level termination frame, if the
	// dialect has one (Apollo does; graphql-transport-ws does not).
	EncodeTerminate() (frame []byte, ok bool)

	// Decode parses one incoming text frame into a normalized Envelope.
	// Decode failures are always *gqlerrs.ProtocolError.
	Decode(raw []byte) (Envelope, error)

	// HasUnidirectionalKeepAlive reports whether the server pushes an
	// unprompted keepalive (Apollo's "ka"); graphql-transport-ws relies on
	// bidirectional ping/pong instead.
	HasUnidirectionalKeepAlive() bool

	// HasPing reports whether the client is expected to drive liveness with
	// its own ping/pong exchange (graphql-transport-ws).
	HasPing() bool

	// EncodePing/EncodePong build the liveness frames, when HasPing is true.
	EncodePing(payload []byte) ([]byte, error)
	EncodePong(payload []byte) ([]byte, error)
}
