package transport

import (
	"context"
	"sync"
)

// Subscription is the lazy sequence of spec.md §4.4, rendered in the
// bufio.Scanner idiom: call Next in a loop until it returns false, then
// check Err for a non-nil terminal error. Closing early (calling Close, or
// ctx ending while Next is blocked) triggers the cancellation cleanup of
// spec.md §4.4/§5: a stop/complete message if send_stop is set, and
// removal of the listener in all cases. Simply breaking out of the loop
// without calling Close runs no cleanup.
type Subscription struct {
	t  *Transport
	id int64
	l  *listener

	once   sync.Once
	last   *Result
	lastOK bool
	err    error
}

// QueryID returns the integer id this subscription was assigned on the
// connection. Exposed mainly for logging/diagnostics.
func (s *Subscription) QueryID() int64 { return s.id }

// Next blocks until the next answer, a terminal error, or ctx is done.
// It returns false once the stream has ended (cleanly or with an error);
// call Err to distinguish the two.
func (s *Subscription) Next(ctx context.Context) (*Result, bool) {
	select {
	case a := <-s.l.ch:
		return s.deliver(a)
	case <-s.l.done:
		// Terminal signal raced a still-buffered answer; drain it before
		// reporting end-of-stream so no item is lost to the race.
		select {
		case a := <-s.l.ch:
			return s.deliver(a)
		default:
			return nil, false
		}
	case <-ctx.Done():
		s.err = ctx.Err()
		s.Close()
		return nil, false
	}
}

func (s *Subscription) deliver(a Answer) (*Result, bool) {
	if a.Err != nil {
		s.err = a.Err
		return nil, false
	}
	return a.Result, true
}

// Err returns the terminal error that ended the stream, or nil if the
// server sent a clean complete (or the caller cancelled voluntarily).
func (s *Subscription) Err() error { return s.err }

// Close cancels the subscription. It is safe to call multiple times and
// safe to call after the stream has already ended naturally.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.t.cancel(s.id, s.l)
	})
}
