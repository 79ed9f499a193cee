package appsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Authenticator is the capability-object pattern of the design notes:
// credentials and signer are injected at construction, never discovered at
// call time. headers_for_connect/headers_for_operation map directly onto
// HeadersForConnect/HeadersForOperation.
type Authenticator interface {
	// HeadersForConnect returns the headers embedded (base64-encoded) in
	// the realtime URL's "header" query parameter.
	HeadersForConnect(ctx context.Context) (map[string]string, error)

	// HeadersForOperation returns the per-subscription
	// payload.extensions.authorization block, signed over serializedQuery
	// when the authenticator is request-signing (IAM); fixed for API key
	// and JWT.
	HeadersForOperation(ctx context.Context, serializedQuery string) (map[string]string, error)
}

// APIKeyAuthenticator implements the fixed host + x-api-key scheme.
type APIKeyAuthenticator struct {
	Host   string
	APIKey string
}

func (a *APIKeyAuthenticator) HeadersForConnect(ctx context.Context) (map[string]string, error) {
	return map[string]string{"host": a.Host, "x-api-key": a.APIKey}, nil
}

func (a *APIKeyAuthenticator) HeadersForOperation(ctx context.Context, _ string) (map[string]string, error) {
	return a.HeadersForConnect(ctx)
}

// JWTAuthenticator implements the fixed host + Authorization bearer scheme
// used by AppSync's OIDC/Cognito User Pool auth modes. It only ever emits
// the opaque token the caller supplies — this module does not parse or
// validate JWTs.
type JWTAuthenticator struct {
	Host  string
	Token string
}

func (a *JWTAuthenticator) HeadersForConnect(ctx context.Context) (map[string]string, error) {
	return map[string]string{"host": a.Host, "Authorization": a.Token}, nil
}

func (a *JWTAuthenticator) HeadersForOperation(ctx context.Context, _ string) (map[string]string, error) {
	return a.HeadersForConnect(ctx)
}

// IAMAuthenticator implements SigV4-signed AppSync auth. It signs a
// synthetic POST request the way spec.md §4.7 describes: to
// https://<host>/graphql/connect with body "{}" for the connect-time
// headers, and to https://<host>/graphql with the serialized query body
// for per-operation headers. Region is derived from the host, falling
// back to Region if the host doesn't carry it.
type IAMAuthenticator struct {
	Host        string
	Region      string // fallback when the host doesn't encode a region
	Credentials aws.CredentialsProvider
	Signer      *v4.Signer // optional override, mainly for tests
}

// NewIAMAuthenticatorFromEnv builds an IAMAuthenticator using the ambient
// AWS credential chain (environment variables, shared config/credentials
// files, EC2/ECS/EKS instance roles), the same discovery
// aws-sdk-go-v2/config.LoadDefaultConfig performs for any other AWS SDK
// client. A region encoded in host takes precedence; region is used only
// when host carries none.
func NewIAMAuthenticatorFromEnv(ctx context.Context, host, region string) (*IAMAuthenticator, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("appsync: loading default AWS config: %w", err)
	}
	return &IAMAuthenticator{Host: host, Region: region, Credentials: cfg.Credentials}, nil
}

// NewIAMAuthenticatorWithStaticCredentials builds an IAMAuthenticator from
// an explicit access key/secret/session token triple, for callers that
// don't want ambient credential discovery (e.g. cross-account role
// assumption handled elsewhere, or tests).
func NewIAMAuthenticatorWithStaticCredentials(host, region, accessKeyID, secretAccessKey, sessionToken string) *IAMAuthenticator {
	return &IAMAuthenticator{
		Host:        host,
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
	}
}

func (a *IAMAuthenticator) region() string {
	if r := RegionFromHost(a.Host); r != "" {
		return r
	}
	return a.Region
}

func (a *IAMAuthenticator) signer() *v4.Signer {
	if a.Signer != nil {
		return a.Signer
	}
	return v4.NewSigner()
}

func (a *IAMAuthenticator) sign(ctx context.Context, path, body string) (map[string]string, error) {
	creds, err := a.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("appsync: retrieving credentials: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s%s", a.Host, path)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("appsync: building signing request: %w", err)
	}
	req.Header.Set("content-type", "application/json; charset=UTF-8")

	sum := sha256.Sum256([]byte(body))
	payloadHash := hex.EncodeToString(sum[:])

	if err := a.signer().SignHTTP(ctx, creds, req, payloadHash, "appsync", a.region(), time.Now()); err != nil {
		return nil, fmt.Errorf("appsync: signing request: %w", err)
	}

	headers := map[string]string{"host": a.Host}
	for k := range req.Header {
		headers[strings.ToLower(k)] = req.Header.Get(k)
	}
	if creds.SessionToken != "" {
		headers["x-amz-security-token"] = creds.SessionToken
	}
	return headers, nil
}

func (a *IAMAuthenticator) HeadersForConnect(ctx context.Context) (map[string]string, error) {
	return a.sign(ctx, "/graphql/connect", ConnectBody)
}

func (a *IAMAuthenticator) HeadersForOperation(ctx context.Context, serializedQuery string) (map[string]string, error) {
	return a.sign(ctx, "/graphql", serializedQuery)
}
