package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"

	"github.com/kalverra/gqlrealtime/gqlerrs"
	"nhooyr.io/websocket"
)

// Adapter is the polymorphic capability set of spec.md §4.1: connect, send a
// text frame, receive a text frame, close, and read the server's upgrade
// response headers. It is the only piece of this module that talks directly
// to a socket; everything above it is adapter-agnostic, which is what makes
// Transport unit-testable against a fake Adapter.
type Adapter interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, text string) error
	Receive(ctx context.Context) (string, error)
	Close(reason string) error
	ResponseHeaders() http.Header
}

// AdapterConfig bundles the dial-time options spec.md §4.1 asks for: TLS
// material, headers, subprotocols, proxy, and basic auth. All of the
// network-shaping knobs are expressed through the injected *http.Client,
// which is how nhooyr.io/websocket exposes TLS/proxy configuration to
// websocket.Dial.
type AdapterConfig struct {
	URL          string
	Subprotocols []string
	Header       http.Header
	TLSConfig    *tls.Config
	ProxyURL     string // empty means no explicit proxy (http.ProxyFromEnvironment still applies)
	BasicUser    string
	BasicPass    string

	// HTTPClient, if set, overrides the client built from TLSConfig/ProxyURL.
	// Tests use this to dial against an httptest.Server.
	HTTPClient *http.Client
}

// wsAdapter is the default Adapter, backed by nhooyr.io/websocket, in the
// same spirit as the teacher's websocketHandler but split into the narrower
// send/receive/close contract the Transport base actually needs.
type wsAdapter struct {
	cfg     AdapterConfig
	conn    *websocket.Conn
	headers http.Header
}

// NewAdapter builds the default WebSocket Adapter.
func NewAdapter(cfg AdapterConfig) Adapter {
	return &wsAdapter{cfg: cfg}
}

func (a *wsAdapter) Connect(ctx context.Context) error {
	client := a.cfg.HTTPClient
	if client == nil {
		transport := &http.Transport{}
		if a.cfg.TLSConfig != nil {
			transport.TLSClientConfig = a.cfg.TLSConfig
		}
		if a.cfg.ProxyURL != "" {
			if u, err := url.Parse(a.cfg.ProxyURL); err == nil {
				transport.Proxy = http.ProxyURL(u)
			}
		} else {
			transport.Proxy = http.ProxyFromEnvironment
		}
		client = &http.Client{Transport: transport}
	}

	header := a.cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if a.cfg.BasicUser != "" || a.cfg.BasicPass != "" {
		req := &http.Request{Header: header}
		req.SetBasicAuth(a.cfg.BasicUser, a.cfg.BasicPass)
	}

	conn, resp, err := websocket.Dial(ctx, a.cfg.URL, &websocket.DialOptions{
		HTTPClient:   client,
		HTTPHeader:   header,
		Subprotocols: a.cfg.Subprotocols,
	})
	if err != nil {
		return &gqlerrs.ConnectFailedError{Cause: err}
	}
	a.conn = conn
	if resp != nil {
		a.headers = resp.Header
	}
	return nil
}

func (a *wsAdapter) Send(ctx context.Context, text string) error {
	if a.conn == nil {
		return gqlerrs.ErrClosed
	}
	if err := a.conn.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		return &gqlerrs.ConnectionFailedError{Cause: err}
	}
	return nil
}

func (a *wsAdapter) Receive(ctx context.Context) (string, error) {
	if a.conn == nil {
		return "", gqlerrs.ErrClosed
	}
	typ, data, err := a.conn.Read(ctx)
	if err != nil {
		return "", &gqlerrs.ConnectionFailedError{Cause: err}
	}
	if typ != websocket.MessageText {
		return "", &gqlerrs.ProtocolError{Reason: "binary frame received, text frame required"}
	}
	return string(data), nil
}

func (a *wsAdapter) Close(reason string) error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close(websocket.StatusNormalClosure, reason)
}

func (a *wsAdapter) ResponseHeaders() http.Header {
	return a.headers
}
