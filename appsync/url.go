// Package appsync implements the AWS AppSync realtime variant of the
// Apollo legacy protocol (spec.md §4.7): URL munging from the HTTP AppSync
// endpoint to the realtime WebSocket endpoint, per-message signed
// authorization extensions, and the three concrete authenticators
// (API key, JWT, IAM/SigV4).
package appsync

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var regionPattern = regexp.MustCompile(`appsync-api\.([^.]+)\.`)

// RegionFromHost extracts the AWS region from an AppSync host, e.g.
// "X.appsync-api.eu-west-3.amazonaws.com" -> "eu-west-3". It returns "" if
// the host doesn't match the expected AppSync naming scheme, in which case
// the caller should fall back to ambient region configuration.
func RegionFromHost(host string) string {
	m := regionPattern.FindStringSubmatch(host)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

// RealtimeURL rewrites an AppSync HTTP GraphQL endpoint
// (https://X.appsync-api.<region>.amazonaws.com/graphql) into the realtime
// WebSocket endpoint
// (wss://X.appsync-realtime-api.<region>.amazonaws.com/graphql?header=<b64>&payload=e30=),
// per spec.md §4.7. headers is the set of connect-time authorization
// headers to embed, base64-encoded as a JSON object in the "header" query
// parameter; "payload" is always the fixed empty-object payload `e30=`
// (base64 of `{}`).
func RealtimeURL(httpEndpoint string, headers map[string]string) (string, error) {
	u, err := url.Parse(httpEndpoint)
	if err != nil {
		return "", fmt.Errorf("appsync: parsing endpoint: %w", err)
	}

	realtimeHost := strings.Replace(u.Host, "appsync-api", "appsync-realtime-api", 1)

	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("appsync: marshaling headers: %w", err)
	}
	encodedHeader := base64.StdEncoding.EncodeToString(headerJSON)

	out := url.URL{
		Scheme:   "wss",
		Host:     realtimeHost,
		Path:     u.Path,
		RawQuery: fmt.Sprintf("header=%s&payload=e30=", url.QueryEscape(encodedHeader)),
	}
	return out.String(), nil
}

// ConnectBody is the fixed request body AppSync's realtime handshake signs
// when using IAM auth: a synthetic POST to <host>/graphql/connect with
// body "{}".
const ConnectBody = "{}"
