// Package transport implements the subscription transport base (spec
// component C4): connection lifecycle, the receive loop, keep-alive and
// ping/pong liveness monitoring, id-based multiplexing, and clean shutdown.
// It depends only on the Adapter and Dialect interfaces, never on a
// concrete WebSocket library or wire format directly.
package transport

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalverra/gqlrealtime/gqlerrs"
)

// State is the Transport State of spec.md §3.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// LogFunc is the logging sink contract. It mirrors the teacher's
// func(args ...interface{}) shape: bring your own logger, or use one of the
// sinks in the root package that adapt a structured logger to this shape.
type LogFunc func(args ...interface{})

// Transport is the Subscription Transport Base (C4). One Transport owns
// exactly one Adapter and one Dialect (composition, not inheritance, per
// the design notes) and all of the Listener Queues created by Subscribe.
type Transport struct {
	adapter Adapter
	dialect Dialect
	log     LogFunc

	initPayload            []byte
	connectTimeout         time.Duration
	ackTimeout             time.Duration
	closeTimeout           time.Duration
	keepAliveTimeout       time.Duration
	pingInterval           time.Duration
	pongTimeout            time.Duration
	subscriptionBufferSize int

	stateMu sync.Mutex
	state   State

	nextID atomic.Int64

	listenersMu sync.Mutex
	listeners   map[int64]*listener

	sendMu sync.Mutex

	kaMu sync.Mutex
	kaCh chan struct{}

	doneCh       chan struct{}
	stopMonitors chan struct{}
	stopOnce     sync.Once
	failOnce     sync.Once

	closeOnce sync.Once
	closeErr  error
}

// New builds a Transport around the given Dialect and Adapter. Apply
// With* options before calling Connect.
func New(dialect Dialect, adapter Adapter) *Transport {
	return &Transport{
		dialect:                dialect,
		adapter:                adapter,
		listeners:              make(map[int64]*listener),
		subscriptionBufferSize: 16,
		kaCh:                   make(chan struct{}),
	}
}

func (t *Transport) WithInitPayload(payload []byte) *Transport {
	t.initPayload = payload
	return t
}

func (t *Transport) WithConnectTimeout(d time.Duration) *Transport {
	t.connectTimeout = d
	return t
}

func (t *Transport) WithAckTimeout(d time.Duration) *Transport {
	t.ackTimeout = d
	return t
}

func (t *Transport) WithCloseTimeout(d time.Duration) *Transport {
	t.closeTimeout = d
	return t
}

func (t *Transport) WithKeepAliveTimeout(d time.Duration) *Transport {
	t.keepAliveTimeout = d
	return t
}

func (t *Transport) WithPingInterval(d time.Duration) *Transport {
	t.pingInterval = d
	return t
}

func (t *Transport) WithPongTimeout(d time.Duration) *Transport {
	t.pongTimeout = d
	return t
}

func (t *Transport) WithSubscriptionBufferSize(n int) *Transport {
	if n > 0 {
		t.subscriptionBufferSize = n
	}
	return t
}

func (t *Transport) WithLog(fn LogFunc) *Transport {
	t.log = fn
	return t
}

func (t *Transport) printLog(args ...interface{}) {
	if t.log != nil {
		t.log(args...)
	}
}

func (t *Transport) State() State {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.stateMu.Lock()
	t.state = s
	t.stateMu.Unlock()
}

// Connect opens the adapter, sends connection_init, waits for
// connection_ack within ack_timeout, then starts the receive loop and the
// optional liveness monitors.
func (t *Transport) Connect(ctx context.Context) error {
	t.stateMu.Lock()
	if t.state != StateDisconnected {
		t.stateMu.Unlock()
		return gqlerrs.ErrAlreadyConnected
	}
	t.state = StateConnecting
	t.stateMu.Unlock()

	connectCtx := ctx
	if t.connectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, t.connectTimeout)
		defer cancel()
	}

	if err := t.adapter.Connect(connectCtx); err != nil {
		t.setState(StateDisconnected)
		return err
	}

	initFrame, err := t.dialect.EncodeInit(t.initPayload)
	if err != nil {
		_ = t.adapter.Close("bad init payload")
		t.setState(StateDisconnected)
		return err
	}
	t.printLog("-> connection_init")
	if err := t.writeFrame(connectCtx, initFrame); err != nil {
		_ = t.adapter.Close("init send failed")
		t.setState(StateDisconnected)
		return err
	}

	ackCtx := ctx
	if t.ackTimeout > 0 {
		var cancel context.CancelFunc
		ackCtx, cancel = context.WithTimeout(ctx, t.ackTimeout)
		defer cancel()
	}
	if err := t.waitForAck(ackCtx); err != nil {
		_ = t.adapter.Close("ack wait failed")
		t.setState(StateDisconnected)
		return err
	}

	t.setState(StateConnected)
	t.signalActivity()
	t.doneCh = make(chan struct{})
	t.stopMonitors = make(chan struct{})

	go t.receiveLoop()
	if t.keepAliveTimeout > 0 {
		go t.keepAliveMonitor()
	}
	if t.pingInterval > 0 && t.dialect.HasPing() {
		go t.pingSender()
	}
	return nil
}

// waitForAck reads frames directly from the adapter (the receive loop isn't
// running yet) until connection_ack arrives. Per the Apollo edge rule, a
// keepalive seen before the ack is ignored rather than treated as a
// violation — reproduced here simply by looping past it.
func (t *Transport) waitForAck(ctx context.Context) error {
	for {
		raw, err := t.adapter.Receive(ctx)
		if err != nil {
			return err
		}
		env, err := t.dialect.Decode([]byte(raw))
		if err != nil {
			return err
		}
		switch env.Kind {
		case KindAck:
			t.printLog("<- connection_ack")
			return nil
		case KindKeepAlive:
			continue
		case KindServerError:
			return &gqlerrs.ServerError{Reason: "connection_error", Payload: env.Payload}
		default:
			return &gqlerrs.ProtocolError{Reason: "unexpected message before connection_ack"}
		}
	}
}

func (t *Transport) writeFrame(ctx context.Context, frame []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.adapter.Send(ctx, string(frame))
}

// signalActivity implements the Keep-Alive State broadcast: every holder of
// the previous channel observes it close, then re-fetches the new one.
func (t *Transport) signalActivity() {
	t.kaMu.Lock()
	close(t.kaCh)
	t.kaCh = make(chan struct{})
	t.kaMu.Unlock()
}

func (t *Transport) activityChan() chan struct{} {
	t.kaMu.Lock()
	defer t.kaMu.Unlock()
	return t.kaCh
}

func (t *Transport) keepAliveMonitor() {
	timer := time.NewTimer(t.keepAliveTimeout)
	defer timer.Stop()
	for {
		ch := t.activityChan()
		select {
		case <-ch:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(t.keepAliveTimeout)
		case <-timer.C:
			t.failConnection(&gqlerrs.ServerError{Reason: "No keep-alive received within timeout"})
			return
		case <-t.stopMonitors:
			return
		}
	}
}

func (t *Transport) pingSender() {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			frame, err := t.dialect.EncodePing(nil)
			if err != nil {
				continue
			}
			ch := t.activityChan()
			if err := t.writeFrame(context.Background(), frame); err != nil {
				return
			}
			if t.pongTimeout <= 0 {
				continue
			}
			select {
			case <-ch:
			case <-time.After(t.pongTimeout):
				t.failConnection(&gqlerrs.ServerError{Reason: "pong not received within timeout"})
				return
			case <-t.stopMonitors:
				return
			}
		case <-t.stopMonitors:
			return
		}
	}
}

func (t *Transport) receiveLoop() {
	defer close(t.doneCh)
	for {
		raw, err := t.adapter.Receive(context.Background())
		if err != nil {
			t.failConnection(err)
			return
		}
		env, err := t.dialect.Decode([]byte(raw))
		if err != nil {
			t.failConnection(err)
			return
		}
		t.dispatch(env)
	}
}

func (t *Transport) dispatch(env Envelope) {
	switch env.Kind {
	case KindAck:
		// A stray ack after the handshake is harmless; ignore.
	case KindKeepAlive, KindPong:
		t.signalActivity()
	case KindPing:
		t.signalActivity()
		if t.dialect.HasPing() {
			frame, err := t.dialect.EncodePong(env.Payload)
			if err == nil {
				_ = t.writeFrame(context.Background(), frame)
			}
		}
	case KindStartAck:
		// Per-subscription ack (AppSync); a benign in-progress signal.
	case KindData:
		t.routeData(env)
	case KindComplete:
		t.routeComplete(env)
	case KindQueryError:
		t.routeQueryError(env)
	case KindServerError:
		t.failConnection(&gqlerrs.ServerError{Reason: "connection_error", Payload: env.Payload})
	}
}

func (t *Transport) lookup(idStr string) (int64, *listener, bool) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, nil, false
	}
	t.listenersMu.Lock()
	l, ok := t.listeners[id]
	t.listenersMu.Unlock()
	return id, l, ok
}

func (t *Transport) routeData(env Envelope) {
	_, l, ok := t.lookup(env.ID)
	if !ok {
		return // late or duplicate message for a removed id: drop silently
	}
	l.put(Answer{Result: &Result{Data: env.Payload, Errors: env.Errors, Extensions: env.Extensions}})
}

func (t *Transport) routeComplete(env Envelope) {
	id, l, ok := t.lookup(env.ID)
	if !ok {
		return
	}
	t.listenersMu.Lock()
	delete(t.listeners, id)
	t.listenersMu.Unlock()
	l.clearSendStop()
	l.closeClean()
}

func (t *Transport) routeQueryError(env Envelope) {
	id, l, ok := t.lookup(env.ID)
	if !ok {
		return
	}
	t.listenersMu.Lock()
	delete(t.listeners, id)
	t.listenersMu.Unlock()
	l.putError(&gqlerrs.QueryError{QueryID: id, Errors: env.Errors, Data: env.PartialData})
}

// failConnection is the connection-scope failure path: every outstanding
// listener receives a copy of cause, the transport moves to Closing then
// Closed, and the monitor goroutines are told to stop. It is idempotent —
// a read error racing a keep-alive timeout only tears down once.
func (t *Transport) failConnection(cause error) {
	t.failOnce.Do(func() {
		t.setState(StateClosing)
		t.printLog(fmt.Sprintf("connection failed: %v", cause))

		t.listenersMu.Lock()
		listeners := t.listeners
		t.listeners = make(map[int64]*listener)
		t.listenersMu.Unlock()

		for _, l := range listeners {
			l.putError(cause)
		}

		t.stopOnce.Do(func() {
			if t.stopMonitors != nil {
				close(t.stopMonitors)
			}
		})
		_ = t.adapter.Close("connection failed")
		t.setState(StateClosed)
	})
}

// Subscribe allocates a query id, installs a listener, sends start/subscribe,
// and returns a lazy Subscription. req.Variables/OperationName/Extensions
// are forwarded verbatim to the Dialect.
func (t *Transport) Subscribe(ctx context.Context, req Request) (*Subscription, error) {
	return t.subscribe(ctx, req, true)
}

// Execute is syntactic sugar over Subscribe that returns the first answer
// and cancels without emitting a stop message, since a well-behaved server
// sends complete on its own for single-shot operations.
func (t *Transport) Execute(ctx context.Context, req Request) (*Result, error) {
	sub, err := t.subscribe(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	res, ok := sub.Next(ctx)
	if !ok {
		if err := sub.Err(); err != nil {
			return nil, err
		}
		return nil, &gqlerrs.ProtocolError{Reason: "no answer received for single-shot operation"}
	}
	return res, nil
}

func (t *Transport) subscribe(ctx context.Context, req Request, sendStopOnCancel bool) (*Subscription, error) {
	if t.State() != StateConnected {
		return nil, gqlerrs.ErrClosed
	}

	id := t.nextID.Add(1)
	l := newListener(id, t.subscriptionBufferSize, sendStopOnCancel)

	t.listenersMu.Lock()
	t.listeners[id] = l
	t.listenersMu.Unlock()

	idStr := strconv.FormatInt(id, 10)
	frame, err := t.dialect.EncodeStart(idStr, req)
	if err != nil {
		t.removeListenerSilently(id)
		return nil, err
	}

	t.printLog(fmt.Sprintf("-> start id=%s", idStr))
	if err := t.writeFrame(ctx, frame); err != nil {
		t.removeListenerSilently(id)
		return nil, err
	}

	return &Subscription{t: t, id: id, l: l}, nil
}

func (t *Transport) removeListenerSilently(id int64) {
	t.listenersMu.Lock()
	delete(t.listeners, id)
	t.listenersMu.Unlock()
}

// cancel implements the Subscribe cleanup path of spec.md §4.4: if the
// listener's send_stop flag is set, emit a stop/complete message; in all
// cases remove the listener.
func (t *Transport) cancel(id int64, l *listener) {
	t.listenersMu.Lock()
	_, present := t.listeners[id]
	if present {
		delete(t.listeners, id)
	}
	t.listenersMu.Unlock()

	if !present {
		return // terminal already arrived and routeComplete/routeQueryError handled it
	}

	if l.shouldSendStop() {
		idStr := strconv.FormatInt(id, 10)
		if frame, err := t.dialect.EncodeStop(idStr); err == nil {
			_ = t.writeFrame(context.Background(), frame)
		}
	}
	l.closeClean()
}

// Close transitions to Closing, runs the clean-close procedure (stop for
// every active listener, bounded drain, transport-level terminate, adapter
// close), waits for the receive loop to exit, then transitions to Closed.
// Close is idempotent: a second concurrent caller observes the closed state
// and returns the first call's result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.stateMu.Lock()
		wasDisconnected := t.state == StateDisconnected
		if !wasDisconnected {
			t.state = StateClosing
		}
		t.stateMu.Unlock()

		if wasDisconnected {
			t.setState(StateClosed)
			return
		}
		t.closeErr = t.gracefulClose()
	})
	return t.closeErr
}

func (t *Transport) gracefulClose() error {
	if t.State() == StateClosed {
		return nil
	}

	t.listenersMu.Lock()
	listeners := make(map[int64]*listener, len(t.listeners))
	for k, v := range t.listeners {
		listeners[k] = v
	}
	t.listenersMu.Unlock()

	ctx := context.Background()
	for id, l := range listeners {
		if l.shouldSendStop() && !l.isClosed() {
			if frame, err := t.dialect.EncodeStop(strconv.FormatInt(id, 10)); err == nil {
				_ = t.writeFrame(ctx, frame)
			}
		}
	}

	if len(listeners) > 0 && t.closeTimeout > 0 {
		t.drainWithin(listeners, t.closeTimeout)
	}

	if frame, ok := t.dialect.EncodeTerminate(); ok {
		_ = t.writeFrame(ctx, frame)
	}

	closeErr := t.adapter.Close("client close")

	t.stopOnce.Do(func() {
		if t.stopMonitors != nil {
			close(t.stopMonitors)
		}
	})

	if t.doneCh != nil {
		<-t.doneCh
	}

	t.setState(StateClosed)
	return closeErr
}

func (t *Transport) drainWithin(listeners map[int64]*listener, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		allClosed := true
		for _, l := range listeners {
			if !l.isClosed() {
				allClosed = false
				break
			}
		}
		if allClosed {
			return
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return
		}
	}
}
