package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenerPutAfterCloseIsNoop(t *testing.T) {
	l := newListener(1, 4, true)
	l.closeClean()

	assert.NotPanics(t, func() {
		l.put(Answer{Result: &Result{}})
	})
	assert.True(t, l.isClosed())
}

func TestListenerPutErrorClosesChannel(t *testing.T) {
	l := newListener(1, 4, true)
	wantErr := errors.New("boom")
	l.putError(wantErr)

	a := <-l.ch
	assert.Equal(t, wantErr, a.Err)
	assert.True(t, l.isClosed(), "listener should be done after the terminal error")
}

func TestListenerPutErrorIsIdempotent(t *testing.T) {
	l := newListener(1, 4, true)
	l.putError(errors.New("first"))

	assert.NotPanics(t, func() {
		l.putError(errors.New("second"))
	})
}

func TestListenerClearSendStop(t *testing.T) {
	l := newListener(1, 4, true)
	assert.True(t, l.shouldSendStop())
	l.clearSendStop()
	assert.False(t, l.shouldSendStop())
}
