package appsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIAMAuthenticatorWithStaticCredentialsSignsConnectRequest(t *testing.T) {
	auth := NewIAMAuthenticatorWithStaticCredentials(
		"abc123.appsync-api.us-east-1.amazonaws.com", "", "AKIAFAKE", "secretfake", "",
	)

	headers, err := auth.HeadersForConnect(context.Background())
	require.NoError(t, err)
	assert.Contains(t, headers, "authorization")
	assert.Equal(t, auth.Host, headers["host"])
	assert.NotContains(t, headers, "x-amz-security-token")
}

func TestIAMAuthenticatorRegionFallsBackWhenHostHasNone(t *testing.T) {
	auth := NewIAMAuthenticatorWithStaticCredentials("custom.example.com", "eu-central-1", "AKIAFAKE", "secretfake", "")
	assert.Equal(t, "eu-central-1", auth.region())
}

func TestIAMAuthenticatorRegionFromHostWins(t *testing.T) {
	auth := NewIAMAuthenticatorWithStaticCredentials(
		"abc.appsync-api.ap-southeast-2.amazonaws.com", "us-east-1", "AKIAFAKE", "secretfake", "",
	)
	assert.Equal(t, "ap-southeast-2", auth.region())
}

func TestIAMAuthenticatorSessionTokenHeader(t *testing.T) {
	auth := NewIAMAuthenticatorWithStaticCredentials(
		"abc.appsync-api.us-east-1.amazonaws.com", "", "AKIAFAKE", "secretfake", "session-token-value",
	)
	headers, err := auth.HeadersForOperation(context.Background(), `{"query":"subscription{x}"}`)
	require.NoError(t, err)
	assert.Equal(t, "session-token-value", headers["x-amz-security-token"])
}
