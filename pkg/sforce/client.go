package sforce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sforcedev/sforce/pkg/httpx"
	"go.uber.org/zap"
)

// schemaCacheSize bounds the number of sobjects whose field lists are
// memoized at once.
const schemaCacheSize = 10

// Client performs sobject metadata, CRUD, and SOQL query operations against
// an authenticated session. Every network-facing method funnels through the
// reauthenticate-and-retry wrapper.
//
// A Client is not safe for concurrent use: reauthentication replaces the
// shared session in place, so callers sharing one instance across
// goroutines must synchronize externally.
type Client struct {
	auth       Authenticator
	logger     *zap.Logger
	apiVersion string
	fieldCache *lru.Cache[string, []FieldDescriptor]
}

// NewClient wraps an already-authenticated Authenticator. Construction
// fails if the authenticator has no live session.
func NewClient(auth Authenticator) (*Client, error) {
	logger, _ := zap.NewProduction()
	return NewClientWithLogger(auth, logger)
}

// NewClientWithLogger wraps an already-authenticated Authenticator with a
// custom logger.
func NewClientWithLogger(auth Authenticator, logger *zap.Logger) (*Client, error) {
	if auth == nil || !auth.IsAuthenticated() {
		return nil, validationf("authenticator is not authenticated")
	}
	cache, err := lru.New[string, []FieldDescriptor](schemaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	return &Client{
		auth:       auth,
		logger:     logger,
		apiVersion: DefaultAPIVersion,
		fieldCache: cache,
	}, nil
}

// SetAPIVersion overrides the REST data API version, e.g. "64.0".
func (c *Client) SetAPIVersion(version string) {
	c.apiVersion = version
}

// Close invalidates the session and drops the authenticator reference. The
// client must not be used afterwards.
func (c *Client) Close() {
	if c.auth != nil {
		c.auth.Session().invalidate()
	}
	c.auth = nil
	c.fieldCache.Purge()
}

func (c *Client) session() *Session {
	return c.auth.Session()
}

// withReauth runs a network operation; on any error it reauthenticates and,
// only if that succeeds, retries the operation exactly once. A failed
// reauthentication surfaces the first attempt's error; a failed retry
// surfaces the retry's own error, with no further attempts either way.
//
// The trigger is deliberately broad: the wrapper cannot tell an expired
// token apart from a malformed query or a missing record, so it retries on
// any failure of the wrapped call.
func (c *Client) withReauth(ctx context.Context, op string, call func() (*httpx.Response, error)) (*httpx.Response, error) {
	resp, err := call()
	if err == nil {
		return resp, nil
	}
	c.logger.Warn("Request failed, reauthenticating",
		zap.String("op", op),
		zap.Error(err))
	if authErr := c.auth.Authenticate(ctx); authErr != nil {
		c.logger.Error("Reauthentication failed",
			zap.String("op", op),
			zap.Error(authErr))
		return nil, asAPIError(err)
	}
	resp, err = call()
	if err != nil {
		return nil, asAPIError(err)
	}
	return resp, nil
}

// get issues a GET against a data-plane resource path, through the reauth
// wrapper.
func (c *Client) get(ctx context.Context, resource string, queryParams map[string]string) (*httpx.Response, error) {
	return c.withReauth(ctx, "GET "+resource, func() (*httpx.Response, error) {
		sess := c.session()
		return sess.Transport.Get(ctx, sess.restURL(c.apiVersion, resource), sess.Headers, queryParams)
	})
}

// getAbsolute issues a GET against a server-relative path such as a
// nextRecordsUrl cursor, through the reauth wrapper.
func (c *Client) getAbsolute(ctx context.Context, serverPath string) (*httpx.Response, error) {
	return c.withReauth(ctx, "GET "+serverPath, func() (*httpx.Response, error) {
		sess := c.session()
		return sess.Transport.Get(ctx, sess.ServiceURL+serverPath, sess.Headers, nil)
	})
}

func (c *Client) post(ctx context.Context, resource string, body interface{}) (*httpx.Response, error) {
	return c.withReauth(ctx, "POST "+resource, func() (*httpx.Response, error) {
		sess := c.session()
		return sess.Transport.Post(ctx, sess.restURL(c.apiVersion, resource), sess.Headers, body)
	})
}

func (c *Client) patch(ctx context.Context, resource string, body interface{}) (*httpx.Response, error) {
	return c.withReauth(ctx, "PATCH "+resource, func() (*httpx.Response, error) {
		sess := c.session()
		return sess.Transport.Patch(ctx, sess.restURL(c.apiVersion, resource), sess.Headers, body)
	})
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, resource string, queryParams map[string]string, out interface{}) error {
	resp, err := c.get(ctx, resource, queryParams)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to parse response for %s: %w", resource, err)
	}
	return nil
}

// FetchRecord retrieves a single record by id. A nil or empty field list
// defaults to every field in the sobject's field map. A missing record is
// an absent result, not an error.
func (c *Client) FetchRecord(ctx context.Context, sobjectName, recordID string, fields []string) (map[string]interface{}, error) {
	if len(fields) == 0 {
		// Project every field, in the field list's sorted order so the
		// request is deterministic.
		fieldList, err := c.SObjectFieldList(ctx, sobjectName)
		if err != nil {
			return nil, err
		}
		fields = make([]string, 0, len(fieldList))
		for _, field := range fieldList {
			fields = append(fields, strings.ToLower(field.Name()))
		}
	}

	resource := fmt.Sprintf("sobjects/%s/%s", sobjectName, recordID)
	resp, err := c.get(ctx, resource, map[string]string{"fields": strings.Join(fields, ",")})
	if err != nil {
		if isNotFound(err) {
			c.logger.Debug("Record not found",
				zap.String("sobject", sobjectName),
				zap.String("id", recordID))
			return nil, nil
		}
		return nil, err
	}

	var record map[string]interface{}
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	return record, nil
}

// InsertRecord creates a single record and returns the new record's id.
func (c *Client) InsertRecord(ctx context.Context, sobjectName string, fields map[string]interface{}) (string, error) {
	resource := fmt.Sprintf("sobjects/%s/", sobjectName)
	resp, err := c.post(ctx, resource, fields)
	if err != nil {
		return "", err
	}

	var result struct {
		ID      string        `json:"id"`
		Success bool          `json:"success"`
		Errors  []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", fmt.Errorf("failed to parse insert response: %w", err)
	}
	c.logger.Debug("Inserted record",
		zap.String("sobject", sobjectName),
		zap.String("id", result.ID))
	return result.ID, nil
}

// UpdateRecord updates a single record in place. Success is implied by a
// nil error.
func (c *Client) UpdateRecord(ctx context.Context, sobjectName, recordID string, fields map[string]interface{}) error {
	resource := fmt.Sprintf("sobjects/%s/%s/", sobjectName, recordID)
	_, err := c.patch(ctx, resource, fields)
	return err
}

// RecordCount returns the number of records in an sobject, optionally
// narrowed by a SOQL where clause. The clause is appended verbatim; the
// caller is responsible for escaping.
func (c *Client) RecordCount(ctx context.Context, sobjectName, whereFilter string) (int, error) {
	soql := "select count() from " + sobjectName
	if whereFilter != "" {
		soql += " where " + whereFilter
	}
	var result struct {
		TotalSize int `json:"totalSize"`
	}
	if err := c.getJSON(ctx, "query/", map[string]string{"q": soql}, &result); err != nil {
		return 0, err
	}
	return result.TotalSize, nil
}

// Custom issues a GET against an arbitrary relative path under the data
// API, for caller-defined REST extensions.
func (c *Client) Custom(ctx context.Context, path string, queryParams map[string]string) (map[string]interface{}, error) {
	if path == "" {
		return nil, validationf("custom endpoint path is required")
	}
	path = strings.TrimPrefix(path, "/")
	var result map[string]interface{}
	if err := c.getJSON(ctx, path, queryParams, &result); err != nil {
		return nil, err
	}
	return result, nil
}
