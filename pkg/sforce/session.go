package sforce

import (
	"fmt"
	"time"

	"github.com/sforcedev/sforce/pkg/httpx"
	"go.uber.org/zap"
)

// DefaultAPIVersion is the REST data API version requests are issued
// against unless the client overrides it.
const DefaultAPIVersion = "52.0"

// tokenResponse is the OAuth token endpoint's JSON payload. On failure the
// endpoint answers with the error/error_description pair instead.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	InstanceURL      string `json:"instance_url"`
	ID               string `json:"id"`
	TokenType        string `json:"token_type"`
	IssuedAt         string `json:"issued_at"`
	Signature        string `json:"signature"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Session is the bundle produced by a successful token exchange: the bearer
// token, the tenant's service URL, and a transport carrying the default
// headers every data-plane call needs. One Session instance is shared by
// reference between the authenticator that owns it and the client that
// reads it; only the authenticator mutates it (on reauthentication).
type Session struct {
	AccessToken string
	ServiceURL  string
	Transport   *httpx.Client
	Headers     map[string]string

	authenticated bool
}

// Authenticated reports whether the session holds a live token. It is true
// iff both the access token and the service URL are set.
func (s *Session) Authenticated() bool {
	return s.authenticated && s.AccessToken != "" && s.ServiceURL != ""
}

// install replaces the session contents with the outcome of a fresh token
// exchange. A new transport is created each time, mirroring the original
// behavior of opening a new HTTP session per authentication.
func (s *Session) install(payload *tokenResponse, logger *zap.Logger, timeout time.Duration) {
	s.AccessToken = payload.AccessToken
	s.ServiceURL = payload.InstanceURL
	s.Transport = httpx.NewClientWithTimeout(logger, timeout)
	s.Headers = map[string]string{
		"Authorization":   "OAuth " + payload.AccessToken,
		"Content-Type":    "application/json; charset=UTF-8",
		"Accept-Encoding": "gzip, compress, deflate",
		"Accept-Charset":  "utf-8",
	}
	s.authenticated = true
}

// invalidate drops the token and transport. Used when the owning client is
// closed.
func (s *Session) invalidate() {
	s.AccessToken = ""
	s.ServiceURL = ""
	s.Transport = nil
	s.Headers = nil
	s.authenticated = false
}

// restURL builds the data-plane URL for a relative resource path.
func (s *Session) restURL(apiVersion, resource string) string {
	return fmt.Sprintf("%s/services/data/v%s/%s", s.ServiceURL, apiVersion, resource)
}
