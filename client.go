// Package gqlrealtime is the Client Session layer (spec component C8): a
// thin pipeline wrapped around a connected transport.Transport, with the
// optional validate/serialize/parse hooks spec.md §4.8 calls for. Document
// parsing, schema validation, and custom-scalar coercion are never
// implemented here — only the narrow hook contracts the core calls, per
// spec.md §1's explicit scope boundary.
package gqlrealtime

import (
	"context"

	"github.com/kalverra/gqlrealtime/gqlerrs"
	"github.com/kalverra/gqlrealtime/transport"
)

// Request and Result are re-exported from the transport package so callers
// never need to import it directly for the common case.
type Request = transport.Request
type Result = transport.Result
type Subscription = transport.Subscription

// SchemaValidator is the hook spec.md §4.8 calls "validate (if a schema is
// configured)". It receives the built Request and returns a descriptive
// error to reject it before anything is sent.
type SchemaValidator func(Request) error

// VariableSerializer is the hook for custom-scalar coercion on the way out;
// it receives the caller-supplied variables and returns the wire-ready map.
type VariableSerializer func(map[string]interface{}) (map[string]interface{}, error)

// ResultParser is the hook for turning a raw Result's Data back into a
// caller's typed structures; it runs only on success (no GraphQL errors).
type ResultParser func(*Result) error

// Client is the Client Session (C8): it wraps one connected Transport and
// exposes Execute/Subscribe atop it.
type Client struct {
	tr *transport.Transport

	validate      SchemaValidator
	serializeVars VariableSerializer
	parseResult   ResultParser

	requireOperationNameForMultiOp bool
}

// NewClient wraps an already-configured (but not yet connected) Transport.
func NewClient(tr *transport.Transport) *Client {
	return &Client{tr: tr, requireOperationNameForMultiOp: true}
}

func (c *Client) WithSchemaValidator(fn SchemaValidator) *Client {
	c.validate = fn
	return c
}

func (c *Client) WithVariableSerializer(fn VariableSerializer) *Client {
	c.serializeVars = fn
	return c
}

func (c *Client) WithResultParser(fn ResultParser) *Client {
	c.parseResult = fn
	return c
}

// Connect opens the underlying transport.
func (c *Client) Connect(ctx context.Context) error {
	return c.tr.Connect(ctx)
}

// Close closes the underlying transport. Dropping a Client does not close
// its Transport; the Transport stays open until Close is called, and
// callers that share a Transport across Clients close it exactly once.
func (c *Client) Close() error {
	return c.tr.Close()
}

// Transport exposes the underlying transport for advanced callers that
// need direct access to its State.
func (c *Client) Transport() *transport.Transport {
	return c.tr
}

func (c *Client) prepare(req Request) (Request, error) {
	if err := requireOperationNameOnMultiOp(req); err != nil {
		return req, err
	}
	if c.validate != nil {
		if err := c.validate(req); err != nil {
			return req, err
		}
	}
	if c.serializeVars != nil {
		vars, err := c.serializeVars(req.Variables)
		if err != nil {
			return req, err
		}
		req.Variables = vars
	}
	return req, nil
}

// Execute validates (if configured), serializes variables (if configured),
// calls the transport's single-shot path, parses the result (if
// configured), and surfaces GraphQL errors as *gqlerrs.QueryError.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	req, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	res, err := c.tr.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return res, &gqlerrs.QueryError{Errors: res.Errors, Data: res.Data}
	}
	if c.parseResult != nil {
		if err := c.parseResult(res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Subscribe runs the same validate/serialize pipeline as Execute, then
// returns a Subscription yielding every answer until the server signals
// completion.
func (c *Client) Subscribe(ctx context.Context, req Request) (*Subscription, error) {
	req, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	return c.tr.Subscribe(ctx, req)
}
