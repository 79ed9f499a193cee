// Package httptransport implements the HTTP-only GraphQL transport:
// spec.md treats it as an out-of-scope sibling interface, documented only
// at its boundary, but a usable module needs at least one working
// single-request/response transport for execute-only callers and the
// CLI's http(s):// scheme. It is adapted from the teacher's
// InoiOy/go-graphql-client graphql.go createRequest/do/doRaw path, reshaped
// around the core's Request/Result types instead of struct-tag reflection
// (document construction is out of scope for this module; callers supply
// an already-built query string).
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kalverra/gqlrealtime/gqlerrs"
	"github.com/kalverra/gqlrealtime/transport"
)

// Client is a single-request/response GraphQL HTTP transport.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Header     http.Header
}

// NewClient targets the given GraphQL server URL. If httpClient is nil,
// http.DefaultClient is used, mirroring the teacher's NewClient.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{URL: url, HTTPClient: httpClient}
}

type requestBody struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type responseBody struct {
	Data       json.RawMessage             `json:"data"`
	Errors     []gqlerrs.GraphQLErrorEntry `json:"errors,omitempty"`
	Extensions map[string]any              `json:"extensions,omitempty"`
}

// Execute posts req to the endpoint and returns the parsed result. An HTTP
// status >= 400 surfaces as *gqlerrs.ServerError; a JSON body with neither
// data nor errors surfaces as *gqlerrs.ProtocolError.
func (c *Client) Execute(ctx context.Context, req transport.Request) (*transport.Result, error) {
	body, err := json.Marshal(requestBody{
		Query:         req.Query,
		Variables:     req.Variables,
		OperationName: req.OperationName,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range c.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, &gqlerrs.ConnectionFailedError{Cause: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gqlerrs.ConnectionFailedError{Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &gqlerrs.ServerError{
			Reason:  fmt.Sprintf("non-2xx status: %s", resp.Status),
			Payload: respBytes,
		}
	}

	var rb responseBody
	if err := json.Unmarshal(respBytes, &rb); err != nil {
		return nil, &gqlerrs.ProtocolError{Reason: "malformed JSON response body", Cause: err}
	}
	if rb.Data == nil && len(rb.Errors) == 0 {
		return nil, &gqlerrs.ProtocolError{Reason: "response has neither data nor errors"}
	}

	return &transport.Result{Data: rb.Data, Errors: rb.Errors, Extensions: rb.Extensions}, nil
}

// ExecuteBatch posts a JSON array of requests and returns one Result per
// request, per spec.md §6's "batch variant accepts and returns a JSON
// array."
func (c *Client) ExecuteBatch(ctx context.Context, reqs []transport.Request) ([]*transport.Result, error) {
	bodies := make([]requestBody, len(reqs))
	for i, r := range reqs {
		bodies[i] = requestBody{Query: r.Query, Variables: r.Variables, OperationName: r.OperationName}
	}
	payload, err := json.Marshal(bodies)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range c.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, &gqlerrs.ConnectionFailedError{Cause: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gqlerrs.ConnectionFailedError{Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &gqlerrs.ServerError{Reason: fmt.Sprintf("non-2xx status: %s", resp.Status), Payload: respBytes}
	}

	var rbs []responseBody
	if err := json.Unmarshal(respBytes, &rbs); err != nil {
		return nil, &gqlerrs.ProtocolError{Reason: "malformed JSON batch response", Cause: err}
	}

	out := make([]*transport.Result, len(rbs))
	for i, rb := range rbs {
		if rb.Data == nil && len(rb.Errors) == 0 {
			return nil, &gqlerrs.ProtocolError{Reason: "batch element has neither data nor errors"}
		}
		out[i] = &transport.Result{Data: rb.Data, Errors: rb.Errors, Extensions: rb.Extensions}
	}
	return out, nil
}
