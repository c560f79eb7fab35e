package acs

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/shineum/smtp2webhook/internal/sink/emailapi"
)

// operationStatus is the body of both the send response and the operation
// status response.
type operationStatus struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (o operationStatus) result() *emailapi.SendResult {
	r := &emailapi.SendResult{ID: o.ID, Status: emailapi.Status(o.Status)}
	if o.Error != nil {
		r.Error = fmt.Sprintf("%s: %s", o.Error.Code, o.Error.Message)
	}
	return r
}

// APIError is a non-success HTTP response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("email API error (HTTP %d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("email API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func newAPIError(statusCode int, body []byte) *APIError {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return &APIError{StatusCode: statusCode, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return &APIError{StatusCode: statusCode, Message: string(body)}
}
