package gqlrealtime

import (
	"context"
	"fmt"

	"github.com/kalverra/gqlrealtime/transport"
)

// AppSyncClient wraps Client for the AWS AppSync realtime endpoint. Per
// spec.md §4.7, the realtime endpoint only ever carries subscriptions:
// Execute (query/mutation) and schema-from-transport fetch are rejected at
// the API surface rather than attempted and failed server-side.
type AppSyncClient struct {
	*Client
}

// NewAppSyncClient wraps an already-configured Transport built with the
// appsync.Dialect.
func NewAppSyncClient(tr *transport.Transport) *AppSyncClient {
	return &AppSyncClient{Client: NewClient(tr)}
}

// Execute always fails: the realtime endpoint is subscriptions-only.
func (c *AppSyncClient) Execute(ctx context.Context, req Request) (*Result, error) {
	return nil, fmt.Errorf("gqlrealtime: queries and mutations are not supported on the AppSync realtime endpoint; subscriptions only")
}

// FetchSchema always fails for the same reason: schema introspection over
// the realtime transport is rejected at the API surface.
func (c *AppSyncClient) FetchSchema(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("gqlrealtime: schema introspection is not supported on the AppSync realtime endpoint")
}
