// Command gqlcli is the thin CLI frontend of spec.md §6: one positional
// server URL, repeated --header/--variable flags, an operation name, a
// protocol selector for WebSocket URLs, and debug/verbose/version flags.
// It reads the query from stdin and prints JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kalverra/gqlrealtime"
	"github.com/kalverra/gqlrealtime/httptransport"
	"github.com/kalverra/gqlrealtime/transport"
)

const version = "0.1.0"

// headerList and variableList implement flag.Value so --header/--variable
// can be repeated on the command line.
type headerList []string

func (h *headerList) String() string { return strings.Join(*h, ",") }
func (h *headerList) Set(v string) error {
	*h = append(*h, v)
	return nil
}

type variableList []string

func (v *variableList) String() string { return strings.Join(*v, ",") }
func (v *variableList) Set(s string) error {
	*v = append(*v, s)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gqlcli", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var headers headerList
	var variables variableList
	operationName := fs.String("operation-name", "", "GraphQL operation name")
	protocolFlag := fs.String("protocol", "apollo", "WebSocket subprotocol for ws(s):// servers: apollo or transportws")
	debug := fs.Bool("debug", false, "print protocol frames to stderr")
	verbose := fs.Bool("verbose", false, "alias for --debug")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Var(&headers, "header", "HTTP/WS header KEY:VALUE (repeatable)")
	fs.Var(&variables, "variable", "GraphQL variable KEY:jsonvalue (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: gqlcli [flags] <server-url>")
		return 1
	}
	serverURL := fs.Arg(0)

	hdr := http.Header{}
	for _, h := range headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			fmt.Fprintf(stderr, "invalid --header %q, expected KEY:VALUE\n", h)
			return 1
		}
		hdr.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}

	vars, err := parseVariables(variables)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	queryBytes, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintln(stderr, "reading query from stdin:", err)
		return 1
	}

	req := gqlrealtime.Request{
		Query:         string(queryBytes),
		Variables:     vars,
		OperationName: *operationName,
	}

	logFn := func(a ...interface{}) {
		if *debug || *verbose {
			fmt.Fprintln(stderr, a...)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := execute(ctx, serverURL, *protocolFlag, hdr, req, logFn)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if len(result.Errors) > 0 {
		return 1
	}
	return 0
}

func parseVariables(raw []string) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --variable %q, expected KEY:jsonvalue", kv)
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)

		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			// Fallback: treat a bare scalar as a quoted JSON string.
			if err2 := json.Unmarshal([]byte(`"`+v+`"`), &decoded); err2 != nil {
				return nil, fmt.Errorf("--variable %s: %w", k, err)
			}
		}
		out[k] = decoded
	}
	return out, nil
}

func execute(ctx context.Context, serverURL, protocol string, hdr http.Header, req gqlrealtime.Request, logFn func(...interface{})) (*gqlrealtime.Result, error) {
	switch {
	case strings.HasPrefix(serverURL, "http://"), strings.HasPrefix(serverURL, "https://"):
		client := httptransport.NewClient(serverURL, &http.Client{Timeout: 30 * time.Second})
		client.Header = hdr
		return client.Execute(ctx, req)

	case strings.HasPrefix(serverURL, "ws://"), strings.HasPrefix(serverURL, "wss://"):
		tr, err := newWSTransport(serverURL, protocol, hdr)
		if err != nil {
			return nil, err
		}
		tr.WithLog(logFn).
			WithConnectTimeout(10 * time.Second).
			WithAckTimeout(10 * time.Second).
			WithCloseTimeout(5 * time.Second)

		if err := tr.Connect(ctx); err != nil {
			return nil, err
		}
		defer tr.Close()

		client := gqlrealtime.NewClient(tr)
		return client.Execute(ctx, req)

	default:
		return nil, fmt.Errorf("unsupported server URL scheme: %s", serverURL)
	}
}

// newWSTransport picks the Apollo or transport-ws dialect by the --protocol
// flag, per spec.md §6's client-selects-subprotocol rule.
func newWSTransport(serverURL, protocol string, hdr http.Header) (*transport.Transport, error) {
	opts := gqlrealtime.DialOptions{Header: hdr}
	switch strings.ToLower(protocol) {
	case "apollo", "graphql-ws", "":
		return gqlrealtime.NewApolloTransport(serverURL, opts), nil
	case "transportws", "graphql-transport-ws":
		return gqlrealtime.NewTransportWSTransport(serverURL, opts), nil
	default:
		return nil, fmt.Errorf("unknown --protocol %q, expected apollo or transportws", protocol)
	}
}
