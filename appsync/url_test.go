package appsync

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionFromHost(t *testing.T) {
	assert.Equal(t, "eu-west-3", RegionFromHost("abc.appsync-api.eu-west-3.amazonaws.com"))
	assert.Equal(t, "", RegionFromHost("example.com"))
}

func TestRealtimeURLRewritesHostAndEncodesHeaders(t *testing.T) {
	wsURL, err := RealtimeURL(
		"https://abc123.appsync-api.us-east-1.amazonaws.com/graphql",
		map[string]string{"host": "abc123.appsync-api.us-east-1.amazonaws.com", "x-api-key": "da2-fake"},
	)
	require.NoError(t, err)

	parsed, err := url.Parse(wsURL)
	require.NoError(t, err)
	assert.Equal(t, "wss", parsed.Scheme)
	assert.Equal(t, "abc123.appsync-realtime-api.us-east-1.amazonaws.com", parsed.Host)
	assert.Equal(t, "/graphql", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "e30=", q.Get("payload"))

	decoded, err := base64.StdEncoding.DecodeString(q.Get("header"))
	require.NoError(t, err)
	var headers map[string]string
	require.NoError(t, json.Unmarshal(decoded, &headers))
	assert.Equal(t, "da2-fake", headers["x-api-key"])
}
