package appsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyAuthenticatorHeaders(t *testing.T) {
	auth := &APIKeyAuthenticator{Host: "abc.appsync-api.us-east-1.amazonaws.com", APIKey: "da2-fake"}

	connect, err := auth.HeadersForConnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "da2-fake", connect["x-api-key"])
	assert.Equal(t, auth.Host, connect["host"])

	op, err := auth.HeadersForOperation(context.Background(), `{"query":"subscription{x}"}`)
	require.NoError(t, err)
	assert.Equal(t, connect, op)
}

func TestJWTAuthenticatorNeverParsesToken(t *testing.T) {
	auth := &JWTAuthenticator{Host: "abc.appsync-api.us-east-1.amazonaws.com", Token: "not-a-real-jwt"}

	headers, err := auth.HeadersForConnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "not-a-real-jwt", headers["Authorization"])
}
