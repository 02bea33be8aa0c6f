package sforce

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const dataPrefix = "/services/data/v" + DefaultAPIVersion + "/"

// fixture runs a fake Salesforce instance: a token endpoint plus whatever
// data-plane handlers a test registers.
type fixture struct {
	t          *testing.T
	mux        *http.ServeMux
	srv        *httptest.Server
	tokenCalls int
	tokenFail  bool
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t, mux: http.NewServeMux()}
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)

	f.mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.tokenFail {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"authentication failure"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":"tok-%d","instance_url":%q,"token_type":"Bearer"}`, f.tokenCalls, f.srv.URL)
	})
	return f
}

// handle registers a data-plane handler under the versioned REST prefix.
func (f *fixture) handle(resource string, handler http.HandlerFunc) {
	f.mux.HandleFunc(dataPrefix+resource, handler)
}

func (f *fixture) authenticator() *PasswordAuthenticator {
	auth, err := NewPasswordAuthenticatorWithLogger(PasswordCredentials{
		Username:       "user@example.com",
		Password:       "secret",
		ConsumerKey:    "consumer-key",
		ConsumerSecret: "consumer-secret",
		ServerURL:      f.srv.URL,
	}, zap.NewNop())
	require.NoError(f.t, err)
	require.NoError(f.t, auth.Authenticate(context.Background()))
	return auth
}

func (f *fixture) client() *Client {
	client, err := NewClientWithLogger(f.authenticator(), zap.NewNop())
	require.NoError(f.t, err)
	return client
}
