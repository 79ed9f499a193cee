package transport

import "github.com/kalverra/gqlrealtime/gqlerrs"

// AnswerKind classifies a decoded incoming message independently of which
// subprotocol produced it. The receive loop and the dialects agree on this
// vocabulary so Transport never has to know about "data" vs "next" or
// "ka" vs "ping".
type AnswerKind int

const (
	KindAck AnswerKind = iota
	KindKeepAlive
	KindPing
	KindPong
	KindData
	KindQueryError
	KindComplete
	KindServerError
	KindStartAck // AppSync per-subscription ack; benign, in-progress signal
)

// Envelope is the normalized shape every Dialect.Decode call produces. Only
// the fields relevant to Kind are populated.
type Envelope struct {
	Kind        AnswerKind
	ID          string // query id, when the message carries one
	Payload     []byte // raw "data"/"payload" for Ack/Ping/Pong/Data
	Errors      []gqlerrs.GraphQLErrorEntry
	PartialData []byte
	Extensions  map[string]any
}

// Answer is what a Listener queue carries: either a successful Result or a
// terminal error. Exactly one of Result/Err is non-nil.
type Answer struct {
	Result *Result
	Err    error
}

// Result is an Execution Result per spec: data, ordered errors, extensions.
type Result struct {
	Data       []byte
	Errors     []gqlerrs.GraphQLErrorEntry
	Extensions map[string]any
}
