package appsync

import (
	"encoding/json"
	"testing"

	"github.com/kalverra/gqlrealtime/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStartMintsUUIDAndRecordsCorrelation(t *testing.T) {
	auth := &APIKeyAuthenticator{Host: "abc.appsync-api.us-east-1.amazonaws.com", APIKey: "da2-fake"}
	d := New(auth)

	frame, err := d.EncodeStart("5", transport.Request{Query: "subscription { onMessage { id } }"})
	require.NoError(t, err)

	var probe struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Payload struct {
			Data       string `json:"data"`
			Extensions struct {
				Authorization map[string]string `json:"authorization"`
			} `json:"extensions"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(frame, &probe))

	assert.NotEqual(t, "5", probe.ID, "wire id must be the minted UUID, not the internal id")
	assert.Equal(t, "start", probe.Type)
	assert.Equal(t, "da2-fake", probe.Payload.Extensions.Authorization["x-api-key"])

	internalID, ok := d.record.Lookup(probe.ID)
	require.True(t, ok)
	assert.Equal(t, int64(5), internalID)
}

func TestDecodeTranslatesStartAckBackToInternalID(t *testing.T) {
	auth := &APIKeyAuthenticator{Host: "h", APIKey: "k"}
	d := New(auth)

	frame, err := d.EncodeStart("5", transport.Request{Query: "subscription { x }"})
	require.NoError(t, err)
	var probe struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(frame, &probe))
	wireID := probe.ID

	ackFrame, err := json.Marshal(map[string]string{"id": wireID, "type": "start_ack"})
	require.NoError(t, err)

	env, err := d.Decode(ackFrame)
	require.NoError(t, err)
	assert.Equal(t, transport.KindStartAck, env.Kind)
	assert.Equal(t, "5", env.ID)
}

func TestDecodeIDLessErrorIsConnectionScoped(t *testing.T) {
	auth := &APIKeyAuthenticator{Host: "h", APIKey: "k"}
	d := New(auth)

	env, err := d.Decode([]byte(`{"type":"error","payload":{"errors":[{"message":"unauthorized"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, transport.KindServerError, env.Kind)
}

func TestEncodeStopUsesMintedWireID(t *testing.T) {
	auth := &APIKeyAuthenticator{Host: "h", APIKey: "k"}
	d := New(auth)

	startFrame, err := d.EncodeStart("5", transport.Request{Query: "subscription { x }"})
	require.NoError(t, err)
	var startProbe struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(startFrame, &startProbe))

	stopFrame, err := d.EncodeStop("5")
	require.NoError(t, err)
	var stopProbe struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(stopFrame, &stopProbe))

	assert.Equal(t, startProbe.ID, stopProbe.ID)
}
