package transport

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kalverra/gqlrealtime/gqlerrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is an in-memory Adapter driven entirely by test code pushing
// frames onto inbound and draining frames off outbound, the same
// dependency-injection seam the teacher's tests drive a fake conn through.
type fakeAdapter struct {
	mu       sync.Mutex
	inbound  chan string
	outbound chan string
	closed   bool
	closeErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		inbound:  make(chan string, 64),
		outbound: make(chan string, 64),
	}
}

func (a *fakeAdapter) Connect(ctx context.Context) error { return nil }

func (a *fakeAdapter) Send(ctx context.Context, text string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return gqlerrs.ErrClosed
	}
	a.mu.Unlock()
	a.outbound <- text
	return nil
}

func (a *fakeAdapter) Receive(ctx context.Context) (string, error) {
	select {
	case msg, ok := <-a.inbound:
		if !ok {
			return "", &gqlerrs.ConnectionFailedError{}
		}
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *fakeAdapter) Close(reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.inbound)
	}
	return a.closeErr
}

func (a *fakeAdapter) ResponseHeaders() http.Header { return nil }

func (a *fakeAdapter) push(msg string) { a.inbound <- msg }

func (a *fakeAdapter) nextOutbound(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-a.outbound:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return ""
	}
}

// fakeDialect is a trivial line-based protocol for exercising Transport
// without a real wire format: every frame is "ack", "ka", "data:<id>:<body>",
// "complete:<id>", "error:<id>:<msg>", or "start:<id>".
type fakeDialect struct{}

func (fakeDialect) Subprotocol() string { return "fake" }

func (fakeDialect) EncodeInit(payload []byte) ([]byte, error) { return []byte("init"), nil }

func (fakeDialect) EncodeStart(id string, req Request) ([]byte, error) {
	return []byte("start:" + id), nil
}

func (fakeDialect) EncodeStop(id string) ([]byte, error) {
	return []byte("stop:" + id), nil
}

func (fakeDialect) EncodeTerminate() ([]byte, bool) { return []byte("terminate"), true }

func (fakeDialect) HasUnidirectionalKeepAlive() bool { return true }

func (fakeDialect) HasPing() bool { return false }

func (fakeDialect) EncodePing(payload []byte) ([]byte, error) { return nil, assertNever() }
func (fakeDialect) EncodePong(payload []byte) ([]byte, error) { return nil, assertNever() }

func assertNever() error { return gqlerrs.ErrClosed }

func (fakeDialect) Decode(raw []byte) (Envelope, error) {
	s := string(raw)
	switch {
	case s == "ack":
		return Envelope{Kind: KindAck}, nil
	case s == "ka":
		return Envelope{Kind: KindKeepAlive}, nil
	case len(s) > 5 && s[:5] == "data:":
		// data:<id>:<body>
		rest := s[5:]
		id, body := splitOnce(rest)
		return Envelope{Kind: KindData, ID: id, Payload: []byte(body)}, nil
	case len(s) > 9 && s[:9] == "complete:":
		return Envelope{Kind: KindComplete, ID: s[9:]}, nil
	case len(s) > 6 && s[:6] == "error:":
		rest := s[6:]
		id, msg := splitOnce(rest)
		return Envelope{Kind: KindQueryError, ID: id, Errors: []gqlerrs.GraphQLErrorEntry{{Message: msg}}}, nil
	}
	return Envelope{}, &gqlerrs.ProtocolError{Reason: "unrecognized fake frame: " + s}
}

func splitOnce(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func newTestTransport() (*Transport, *fakeAdapter) {
	a := newFakeAdapter()
	tr := New(fakeDialect{}, a)
	return tr, a
}

func TestConnectWaitsForAck(t *testing.T) {
	tr, a := newTestTransport()

	go a.push("ack")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Connect(ctx))
	assert.Equal(t, StateConnected, tr.State())
}

func TestConnectIgnoresKeepAliveBeforeAck(t *testing.T) {
	tr, a := newTestTransport()

	go func() {
		a.push("ka")
		a.push("ka")
		a.push("ack")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Connect(ctx))
	assert.Equal(t, StateConnected, tr.State())
}

func TestExecuteReturnsFirstDataAndCancelsWithoutStop(t *testing.T) {
	tr, a := newTestTransport()
	go a.push("ack")
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))
	assert.Equal(t, "init", a.nextOutbound(t))

	go func() {
		startFrame := a.nextOutbound(t)
		assert.Equal(t, "start:1", startFrame)
		a.push("data:1:hello")
		a.push("complete:1")
	}()

	res, err := tr.Execute(ctx, Request{Query: "query { x }"})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Data))
	assert.Empty(t, a.outbound, "Execute must not send a stop frame")
}

func TestSubscribeDeliversMultipleAnswers(t *testing.T) {
	tr, a := newTestTransport()
	go a.push("ack")
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))
	a.nextOutbound(t) // init

	sub, err := tr.Subscribe(ctx, Request{Query: "subscription { x }"})
	require.NoError(t, err)
	assert.Equal(t, "start:1", a.nextOutbound(t))

	a.push("data:1:one")
	a.push("data:1:two")
	a.push("complete:1")

	res, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "one", string(res.Data))

	res, ok = sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "two", string(res.Data))

	_, ok = sub.Next(ctx)
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestSubscribeQueryErrorEndsStream(t *testing.T) {
	tr, a := newTestTransport()
	go a.push("ack")
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))
	a.nextOutbound(t)

	sub, err := tr.Subscribe(ctx, Request{Query: "subscription { x }"})
	require.NoError(t, err)
	a.nextOutbound(t)

	a.push("error:1:boom")

	_, ok := sub.Next(ctx)
	assert.False(t, ok)
	var qerr *gqlerrs.QueryError
	require.ErrorAs(t, sub.Err(), &qerr)
	assert.Equal(t, "boom", qerr.Errors[0].Message)
}

func TestCancelSendsStopWhenOutstanding(t *testing.T) {
	tr, a := newTestTransport()
	go a.push("ack")
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))
	a.nextOutbound(t)

	sub, err := tr.Subscribe(ctx, Request{Query: "subscription { x }"})
	require.NoError(t, err)
	assert.Equal(t, "start:1", a.nextOutbound(t))

	sub.Close()
	assert.Equal(t, "stop:1", a.nextOutbound(t))
}

func TestConnectionFailurePropagatesToListeners(t *testing.T) {
	tr, a := newTestTransport()
	go a.push("ack")
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))
	a.nextOutbound(t)

	sub, err := tr.Subscribe(ctx, Request{Query: "subscription { x }"})
	require.NoError(t, err)
	a.nextOutbound(t)

	a.Close("simulate remote close")

	_, ok := sub.Next(ctx)
	assert.False(t, ok)
	assert.Error(t, sub.Err())

	assert.Eventually(t, func() bool {
		return tr.State() == StateClosed
	}, time.Second, 10*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	tr, a := newTestTransport()
	go a.push("ack")
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))
	a.nextOutbound(t)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, StateClosed, tr.State())
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	tr, a := newTestTransport()
	go a.push("ack")
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))
	a.nextOutbound(t)
	require.NoError(t, tr.Close())

	_, err := tr.Subscribe(ctx, Request{Query: "subscription { x }"})
	assert.ErrorIs(t, err, gqlerrs.ErrClosed)
}
