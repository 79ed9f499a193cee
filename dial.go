package gqlrealtime

import (
	"context"
	"net/http"

	"github.com/kalverra/gqlrealtime/appsync"
	"github.com/kalverra/gqlrealtime/protocol/apollows"
	"github.com/kalverra/gqlrealtime/protocol/transportws"
	"github.com/kalverra/gqlrealtime/transport"
)

// DialOptions are the adapter-level knobs the factories below pass through:
// request headers and an HTTP client override. TLS and proxy settings come
// only from that client; the adapter's own TLSConfig, ProxyURL and
// basic-auth fields are not reachable through DialOptions.
type DialOptions struct {
	Header     http.Header
	HTTPClient *http.Client
}

func (o DialOptions) adapterConfig(url string, subprotocol string) transport.AdapterConfig {
	return transport.AdapterConfig{
		URL:          url,
		Subprotocols: []string{subprotocol},
		Header:       o.Header,
		HTTPClient:   o.HTTPClient,
	}
}

// NewApolloTransport builds a Transport for the legacy graphql-ws protocol
// against url, per spec.md §6's subprotocol negotiation rule.
func NewApolloTransport(url string, opts DialOptions) *transport.Transport {
	dialect := apollows.New()
	adapter := transport.NewAdapter(opts.adapterConfig(url, dialect.Subprotocol()))
	return transport.New(dialect, adapter)
}

// NewTransportWSTransport builds a Transport for the newer
// graphql-transport-ws protocol against url.
func NewTransportWSTransport(url string, opts DialOptions) *transport.Transport {
	dialect := transportws.New()
	adapter := transport.NewAdapter(opts.adapterConfig(url, dialect.Subprotocol()))
	return transport.New(dialect, adapter)
}

// NewAppSyncTransport rewrites httpEndpoint into its realtime WebSocket
// form (spec.md §4.7) using auth's connect-time headers, then builds a
// Transport running the AppSync dialect atop it. The realtime endpoint
// negotiates the same "graphql-ws" subprotocol token as the legacy Apollo
// dialect (spec.md §6).
func NewAppSyncTransport(ctx context.Context, httpEndpoint string, auth appsync.Authenticator, opts DialOptions) (*transport.Transport, error) {
	connectHeaders, err := auth.HeadersForConnect(ctx)
	if err != nil {
		return nil, err
	}
	wsURL, err := appsync.RealtimeURL(httpEndpoint, connectHeaders)
	if err != nil {
		return nil, err
	}

	dialect := appsync.New(auth)
	adapter := transport.NewAdapter(opts.adapterConfig(wsURL, dialect.Subprotocol()))
	return transport.New(dialect, adapter), nil
}
