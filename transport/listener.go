package transport

import "sync"

// listener owns one in-flight operation's inbox. The receive loop delivers
// every answer; a connection-scope failure (which a liveness monitor can
// also raise) delivers the terminal error. The subscriber goroutine calling
// Subscription.Next is its only reader. Termination is signaled via done rather than by closing ch
// directly: a consumer-initiated cancel can race the receive loop's own
// dispatch for the same id, and closing ch from either side while the other
// sends on it would panic. done is close-once and safe to observe from
// either side; ch itself is never closed, only drained.
type listener struct {
	id       int64
	ch       chan Answer
	sendStop bool

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newListener(id int64, bufSize int, sendStop bool) *listener {
	return &listener{
		id:       id,
		ch:       make(chan Answer, bufSize),
		sendStop: sendStop,
		done:     make(chan struct{}),
	}
}

// put enqueues an answer. It is a no-op once the listener is closed.
func (l *listener) put(a Answer) {
	if l.isClosed() {
		return
	}
	select {
	case l.ch <- a:
	case <-l.done:
	}
}

// putError enqueues a terminal error and closes the listener. Receiving a
// `complete` message should instead call clearSendStop then close cleanly
// without an error Answer, which the Transport does directly.
func (l *listener) putError(err error) {
	if l.isClosed() {
		return
	}
	select {
	case l.ch <- Answer{Err: err}:
		l.closeOnce.Do(func() { close(l.done) })
	case <-l.done:
	}
}

// closeClean marks the listener done without enqueuing a terminal error —
// used when a `complete` message (or caller-initiated cancellation without
// an error) ends the stream. Any answers already buffered in ch remain
// readable; Subscription.Next drains them before reporting end-of-stream.
func (l *listener) closeClean() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *listener) isClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// clearSendStop implements the Listener Queue invariant that receiving a
// complete message means the server already ended the stream, so no
// stop/complete message should be emitted on cleanup.
func (l *listener) clearSendStop() {
	l.mu.Lock()
	l.sendStop = false
	l.mu.Unlock()
}

func (l *listener) shouldSendStop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sendStop
}
