package sforce

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sforcedev/sforce/pkg/httpx"
)

// AuthError reports a structured failure from the OAuth token endpoint.
// The code and description are the provider's own, passed through verbatim.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authentication failed: %s (%s)", e.Description, e.Code)
	}
	return fmt.Sprintf("authentication failed: %s", e.Code)
}

// ValidationError reports caller input that violates a precondition. It is
// raised before any network call and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// APIError reports a non-2xx response from a data-plane endpoint, carrying
// the service's errorCode/message pair when the body contains one.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("salesforce api error %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("salesforce api error %d: %s", e.StatusCode, e.Message)
}

// restError is the element shape of the JSON error array the data plane
// returns on failed calls.
type restError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// asAPIError converts a transport failure into an *APIError when the
// response carried a status code. Other failures pass through unchanged.
func asAPIError(err error) error {
	var statusErr *httpx.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	apiErr := &APIError{StatusCode: statusErr.StatusCode, Message: string(statusErr.Body)}
	var payload []restError
	if jsonErr := json.Unmarshal(statusErr.Body, &payload); jsonErr == nil && len(payload) > 0 {
		apiErr.ErrorCode = payload[0].ErrorCode
		apiErr.Message = payload[0].Message
	}
	return apiErr
}

// isNotFound reports whether err is a 404 from the data plane.
func isNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	var statusErr *httpx.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == 404
}
