package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is every non-2xx outcome of a call, including the local
// "Authentication required" failure raised before any request is sent.
type APIError struct {
	Status  int
	Message string
	Code    string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
	Code    string          `json:"code"`
}

func newAPIError(status int, raw []byte) *APIError {
	e := &APIError{Status: status}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		e.Message = body.Error
		e.Code = body.Code
		if len(body.Details) > 0 && string(body.Details) != "null" {
			e.Details = body.Details
		}
		return e
	}
	e.Message = fmt.Sprintf("Request failed with status %d", status)
	return e
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
