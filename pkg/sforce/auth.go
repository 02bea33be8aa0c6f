package sforce

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sforcedev/sforce/pkg/httpx"
	"go.uber.org/zap"
)

// DefaultServerURL is the sandbox login endpoint used when credentials do
// not name an authorization server.
const DefaultServerURL = "https://test.salesforce.com"

// assertionLifetime is how far in the future the JWT bearer assertion
// expires.
const assertionLifetime = 60 * time.Second

// Authenticator turns a credential set into a live Session. Implementations
// converge on the same post-authentication contract, so the client never
// depends on a concrete grant type.
type Authenticator interface {
	// Authenticate exchanges the credentials for a bearer token and
	// installs the result into the session.
	Authenticate(ctx context.Context) error

	// IsAuthenticated reports whether the session holds a live token.
	IsAuthenticated() bool

	// Session returns the session owned by this authenticator. The same
	// instance is returned across calls; reauthentication mutates it in
	// place.
	Session() *Session
}

// baseAuthenticator carries the parts every grant type shares: the session,
// the transport used for the token exchange, and the exchange itself.
type baseAuthenticator struct {
	sess      *Session
	serverURL string
	transport *httpx.Client
	logger    *zap.Logger
	timeout   time.Duration
}

func newBaseAuthenticator(serverURL string, logger *zap.Logger) baseAuthenticator {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return baseAuthenticator{
		sess:      &Session{},
		serverURL: serverURL,
		transport: httpx.NewClientWithLogger(logger),
		logger:    logger,
		timeout:   httpx.DefaultTimeout,
	}
}

func (b *baseAuthenticator) IsAuthenticated() bool {
	return b.sess.Authenticated()
}

func (b *baseAuthenticator) Session() *Session {
	return b.sess
}

// exchange posts the grant-specific form to the token endpoint and installs
// the resulting session. A structured error from the provider becomes an
// *AuthError; any other non-2xx response surfaces as a transport error.
func (b *baseAuthenticator) exchange(ctx context.Context, form url.Values) error {
	tokenURL := b.serverURL + "/services/oauth2/token"
	b.logger.Info("Authenticating with Salesforce", zap.String("url", tokenURL))

	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}

	resp, err := b.transport.Do(httpx.RequestOptions{
		Method:  "POST",
		URL:     tokenURL,
		Headers: headers,
		Body:    form,
		Context: ctx,
	})
	if err != nil {
		// The provider reports grant failures as 400s with a structured
		// body. Surface those as AuthError, everything else as-is.
		if authErr := authErrorFromTransport(err); authErr != nil {
			b.logger.Error("Authentication rejected",
				zap.String("error", authErr.Code),
				zap.String("description", authErr.Description))
			return authErr
		}
		b.logger.Error("Authentication request failed", zap.Error(err), zap.String("url", tokenURL))
		return fmt.Errorf("authentication request failed: %w", err)
	}

	var payload tokenResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		b.logger.Error("Failed to parse authentication response", zap.Error(err))
		return fmt.Errorf("failed to parse authentication response: %w", err)
	}
	if payload.Error != "" {
		authErr := &AuthError{Code: payload.Error, Description: payload.ErrorDescription}
		b.logger.Error("Authentication rejected",
			zap.String("error", authErr.Code),
			zap.String("description", authErr.Description))
		return authErr
	}

	b.sess.install(&payload, b.logger, b.timeout)
	b.logger.Info("Successfully authenticated",
		zap.String("token_type", payload.TokenType),
		zap.String("instance_url", payload.InstanceURL))
	return nil
}

// authErrorFromTransport extracts the provider's error/error_description
// pair from a failed token exchange, or returns nil when the body has no
// structured error.
func authErrorFromTransport(err error) *AuthError {
	var statusErr *httpx.StatusError
	if !errors.As(err, &statusErr) {
		return nil
	}
	var payload tokenResponse
	if jsonErr := json.Unmarshal(statusErr.Body, &payload); jsonErr != nil || payload.Error == "" {
		return nil
	}
	return &AuthError{Code: payload.Error, Description: payload.ErrorDescription}
}

// JWTCredentials are the inputs for the certificate-assertion grant. The
// private key is a PEM-encoded RSA key whose certificate is registered with
// the connected app identified by ConsumerKey.
type JWTCredentials struct {
	Username    string
	ConsumerKey string
	PrivateKey  string
	ServerURL   string
}

func (c *JWTCredentials) Validate() error {
	if c.Username == "" {
		return validationf("username is required")
	}
	if c.ConsumerKey == "" {
		return validationf("consumer key is required")
	}
	if c.PrivateKey == "" {
		return validationf("private key is required")
	}
	return nil
}

// JWTAuthenticator implements the OAuth JWT-bearer grant: a short-lived
// RS256-signed assertion is exchanged for a bearer token.
type JWTAuthenticator struct {
	baseAuthenticator
	username    string
	consumerKey string
	privateKey  *rsa.PrivateKey
}

func NewJWTAuthenticator(creds JWTCredentials) (*JWTAuthenticator, error) {
	logger, _ := zap.NewProduction()
	return NewJWTAuthenticatorWithLogger(creds, logger)
}

// NewJWTAuthenticatorWithLogger creates a JWT-bearer authenticator with a
// custom logger.
func NewJWTAuthenticatorWithLogger(creds JWTCredentials, logger *zap.Logger) (*JWTAuthenticator, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return &JWTAuthenticator{
		baseAuthenticator: newBaseAuthenticator(creds.ServerURL, logger),
		username:          creds.Username,
		consumerKey:       creds.ConsumerKey,
		privateKey:        key,
	}, nil
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    a.consumerKey,
		Subject:   a.username,
		Audience:  jwt.ClaimStrings{a.serverURL},
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	})
	assertion, err := token.SignedString(a.privateKey)
	if err != nil {
		a.logger.Error("Failed to sign assertion", zap.Error(err))
		return fmt.Errorf("failed to sign assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)
	return a.exchange(ctx, form)
}

// PasswordCredentials are the inputs for the resource-owner password grant.
type PasswordCredentials struct {
	Username       string
	Password       string
	ConsumerKey    string
	ConsumerSecret string
	ServerURL      string
}

func (c *PasswordCredentials) Validate() error {
	if c.Username == "" {
		return validationf("username is required")
	}
	if c.Password == "" {
		return validationf("password is required")
	}
	if c.ConsumerKey == "" {
		return validationf("consumer key is required")
	}
	if c.ConsumerSecret == "" {
		return validationf("consumer secret is required")
	}
	return nil
}

// PasswordAuthenticator implements the OAuth password grant.
type PasswordAuthenticator struct {
	baseAuthenticator
	creds PasswordCredentials
}

func NewPasswordAuthenticator(creds PasswordCredentials) (*PasswordAuthenticator, error) {
	logger, _ := zap.NewProduction()
	return NewPasswordAuthenticatorWithLogger(creds, logger)
}

// NewPasswordAuthenticatorWithLogger creates a password-grant authenticator
// with a custom logger.
func NewPasswordAuthenticatorWithLogger(creds PasswordCredentials, logger *zap.Logger) (*PasswordAuthenticator, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &PasswordAuthenticator{
		baseAuthenticator: newBaseAuthenticator(creds.ServerURL, logger),
		creds:             creds,
	}, nil
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", a.creds.Username)
	form.Set("password", a.creds.Password)
	form.Set("client_id", a.creds.ConsumerKey)
	form.Set("client_secret", a.creds.ConsumerSecret)
	return a.exchange(ctx, form)
}
