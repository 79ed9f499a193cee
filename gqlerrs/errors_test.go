package gqlerrs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectFailedErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &ConnectFailedError{Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connect failed")
	assert.Contains(t, err.Error(), "refused")
}

func TestConnectionFailedErrorNilCause(t *testing.T) {
	err := &ConnectionFailedError{}
	assert.Equal(t, "connection failed", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestErrAlreadyConnectedIsSingleton(t *testing.T) {
	assert.Same(t, ErrAlreadyConnected, ErrAlreadyConnected)
	assert.ErrorIs(t, ErrAlreadyConnected, ErrAlreadyConnected)
}

func TestProtocolErrorWrapsCause(t *testing.T) {
	cause := errors.New("unexpected token")
	err := &ProtocolError{Reason: "malformed JSON frame", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "malformed JSON frame")
}

func TestQueryErrorMessage(t *testing.T) {
	err := &QueryError{
		QueryID: 7,
		Errors:  []GraphQLErrorEntry{{Message: "field not found"}},
	}
	assert.Equal(t, "query 7: field not found", err.Error())

	empty := &QueryError{QueryID: 3}
	assert.Equal(t, "query 3: error", empty.Error())
}

func TestServerErrorWithPayload(t *testing.T) {
	err := &ServerError{Reason: "connection_error", Payload: []byte(`{"message":"unauthorized"}`)}
	assert.Contains(t, err.Error(), "connection_error")
	assert.Contains(t, err.Error(), "unauthorized")
}
