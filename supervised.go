package gqlrealtime

import (
	"context"
	"errors"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/kalverra/gqlrealtime/gqlerrs"
	"github.com/kalverra/gqlrealtime/transport"
)

// Dialer builds and returns a fresh, not-yet-connected Transport. Supervised
// calls it every time it needs to (re)establish a connection, since a
// Transport instance cannot be reused after Close per spec.md §3.
type Dialer func(ctx context.Context) (*transport.Transport, error)

// Supervised is the Supervised Reconnecting Session (C9): it wraps a Dialer
// with a connect loop that re-opens on *gqlerrs.ConnectionFailedError, with
// two independent retry policies around connect and around individual
// execute/subscribe calls. Backoff comes from
// github.com/cenkalti/backoff/v4, the shape several repos in the retrieval
// pack (codeready-toolchain-tarsy, Darkness4-withny-dl, irgordon-kari,
// filipexyz-notif) use for exactly this kind of reconnect policy.
type Supervised struct {
	dial Dialer

	mu      sync.Mutex
	current *transport.Transport

	retryConnect backoff.BackOff
	retryExecute backoff.BackOff
}

// NewSupervised wraps dial with the default policies: exponential backoff
// around connect, and no retry around execute. Override either with
// WithRetryConnect/WithRetryExecute.
func NewSupervised(dial Dialer) *Supervised {
	return &Supervised{dial: dial}
}

// WithRetryConnect overrides the backoff policy applied around Connect.
func (s *Supervised) WithRetryConnect(b backoff.BackOff) *Supervised {
	s.retryConnect = b
	return s
}

// WithRetryExecute overrides the backoff policy applied around individual
// Execute/Subscribe calls.
func (s *Supervised) WithRetryExecute(b backoff.BackOff) *Supervised {
	s.retryExecute = b
	return s
}

func (s *Supervised) connectPolicy(ctx context.Context) backoff.BackOff {
	b := s.retryConnect
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}
	return backoff.WithContext(b, ctx)
}

func (s *Supervised) executePolicy(ctx context.Context) backoff.BackOff {
	b := s.retryExecute
	if b == nil {
		b = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 0)
	}
	return backoff.WithContext(b, ctx)
}

// ensureConnected returns the current Transport, dialing and connecting a
// fresh one (retried per retryConnect) if the existing one is gone or no
// longer connected.
func (s *Supervised) ensureConnected(ctx context.Context) (*transport.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.State() == transport.StateConnected {
		return s.current, nil
	}

	var tr *transport.Transport
	op := func() error {
		t, err := s.dial(ctx)
		if err != nil {
			if errors.As(err, new(*gqlerrs.ConnectFailedError)) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		if err := t.Connect(ctx); err != nil {
			if errors.As(err, new(*gqlerrs.ConnectFailedError)) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		tr = t
		return nil
	}

	if err := backoff.Retry(op, s.connectPolicy(ctx)); err != nil {
		return nil, err
	}
	s.current = tr
	return tr, nil
}

// Execute retries the whole ensure-connected-then-execute sequence under
// retryExecute. A *gqlerrs.ConnectionFailedError triggers reconnection on
// the next attempt; any other error is not retried.
func (s *Supervised) Execute(ctx context.Context, req Request) (*Result, error) {
	var res *Result
	op := func() error {
		tr, err := s.ensureConnected(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := tr.Execute(ctx, req)
		if err != nil {
			if errors.As(err, new(*gqlerrs.ConnectionFailedError)) {
				return err // retryable; ensureConnected will redial next pass
			}
			return backoff.Permanent(err)
		}
		res = r
		return nil
	}
	if err := backoff.Retry(op, s.executePolicy(ctx)); err != nil {
		return nil, unwrapPermanent(err)
	}
	return res, nil
}

// Subscribe connects (retried per retryConnect) and starts a subscription.
// Per spec.md §4.9, a failure during an already-active subscription
// terminates that subscription's iterator with ConnectionFailed directly —
// Supervised does not resume or replay a broken subscription; only the
// *next* call to Subscribe/Execute triggers reconnection.
func (s *Supervised) Subscribe(ctx context.Context, req Request) (*Subscription, error) {
	tr, err := s.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return tr.Subscribe(ctx, req)
}

// Close closes the current transport, if any.
func (s *Supervised) Close() error {
	s.mu.Lock()
	tr := s.current
	s.current = nil
	s.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.Close()
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
