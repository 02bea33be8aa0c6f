package sforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_RequiresAuthenticatedSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	auth, err := NewPasswordAuthenticatorWithLogger(PasswordCredentials{
		Username:       "user@example.com",
		Password:       "pw",
		ConsumerKey:    "k",
		ConsumerSecret: "s",
		ServerURL:      f.srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = NewClientWithLogger(auth, zap.NewNop())
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	require.NoError(t, auth.Authenticate(context.Background()))
	client, err := NewClientWithLogger(auth, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	auth := f.authenticator()
	client, err := NewClientWithLogger(auth, zap.NewNop())
	require.NoError(t, err)

	client.Close()
	assert.False(t, auth.IsAuthenticated())
}

func TestWithReauth_RetriesOnceAfterReauthentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	attempts := 0
	f.handle("sobjects/Account/001", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`)
			return
		}
		// The retry must carry the token from the second exchange.
		assert.Equal(t, "OAuth tok-2", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"Id":"001","Name":"Acme"}`)
	})

	client := f.client()
	record, err := client.FetchRecord(context.Background(), "Account", "001", []string{"Id", "Name"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", record["Name"])
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, f.tokenCalls)
}

func TestWithReauth_ReauthFailurePropagatesOriginalError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	attempts := 0
	f.handle("query/", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `[{"message":"unexpected token","errorCode":"MALFORMED_QUERY"}]`)
	})

	client := f.client()
	f.tokenFail = true

	_, err := client.Query(context.Background(), "select bogus")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "MALFORMED_QUERY", apiErr.ErrorCode)
	// No retry happened: reauthentication failed.
	assert.Equal(t, 1, attempts)
}

func TestWithReauth_SecondFailureStopsRetrying(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	attempts := 0
	f.handle("query/", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `[{"message":"unexpected token","errorCode":"MALFORMED_QUERY"}]`)
	})

	client := f.client()
	_, err := client.Query(context.Background(), "select bogus")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "MALFORMED_QUERY", apiErr.ErrorCode)
	// Exactly two attempts: the original call and one retry.
	assert.Equal(t, 2, attempts)
}

func TestFetchRecord_NotFoundIsAbsent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handle("sobjects/Account/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `[{"message":"The requested resource does not exist","errorCode":"NOT_FOUND"}]`)
	})

	client := f.client()
	record, err := client.FetchRecord(context.Background(), "Account", "missing", []string{"Id"})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFetchRecord_DefaultsToFullFieldMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handle("sobjects/Account/describe", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"fields":[{"name":"Name","type":"string"},{"name":"Id","type":"id"}]}`)
	})
	var gotFields string
	f.handle("sobjects/Account/001", func(w http.ResponseWriter, r *http.Request) {
		gotFields = r.URL.Query().Get("fields")
		fmt.Fprint(w, `{"Id":"001","Name":"Acme"}`)
	})

	client := f.client()
	record, err := client.FetchRecord(context.Background(), "Account", "001", nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", record["Name"])
	// Every field, lower-cased, in the field list's sorted order.
	assert.Equal(t, []string{"id", "name"}, strings.Split(gotFields, ","))
}

func TestInsertRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var gotBody map[string]interface{}
	f.handle("sobjects/Contact/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"003xx0001","success":true,"errors":[]}`)
	})

	client := f.client()
	id, err := client.InsertRecord(context.Background(), "Contact", map[string]interface{}{
		"LastName": "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, "003xx0001", id)
	assert.Equal(t, "Smith", gotBody["LastName"])
}

func TestUpdateRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var gotMethod string
	f.handle("sobjects/Contact/003xx0001/", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	client := f.client()
	err := client.UpdateRecord(context.Background(), "Contact", "003xx0001", map[string]interface{}{
		"LastName": "Jones",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
}

func TestRecordCount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var gotSOQL string
	f.handle("query/", func(w http.ResponseWriter, r *http.Request) {
		gotSOQL = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"totalSize":42,"done":true,"records":[]}`)
	})

	client := f.client()
	count, err := client.RecordCount(context.Background(), "Account", "Name='Acme'")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.Equal(t, "select count() from Account where Name='Acme'", gotSOQL)
}

func TestRecordCount_NoFilter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var gotSOQL string
	f.handle("query/", func(w http.ResponseWriter, r *http.Request) {
		gotSOQL = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"totalSize":7,"done":true,"records":[]}`)
	})

	client := f.client()
	count, err := client.RecordCount(context.Background(), "Lead", "")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Equal(t, "select count() from Lead", gotSOQL)
}

func TestCustom(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handle("limits/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("verbose"))
		fmt.Fprint(w, `{"DailyApiRequests":{"Max":15000}}`)
	})

	client := f.client()
	result, err := client.Custom(context.Background(), "limits/", map[string]string{"verbose": "1"})
	require.NoError(t, err)
	assert.Contains(t, result, "DailyApiRequests")
}

func TestCustom_EmptyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	client := f.client()

	_, err := client.Custom(context.Background(), "", nil)
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}
