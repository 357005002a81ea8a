package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Machine-readable codes for failures that never reached the server
const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeUnknownError = "UNKNOWN_ERROR"
)

const (
	networkErrorMessage = "Network error - please check your connection"
	unknownErrorMessage = "An unexpected error occurred"
)

// APIError is the single normalised failure shape returned by the client.
// Status is the HTTP status code, or 0 when no response was received.
type APIError struct {
	Message string
	Status  int
	Code    string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether the request never got a response
func (e *APIError) IsTransport() bool {
	return e.Status == 0 && e.Code == CodeNetworkError
}

// AsAPIError extracts the normalised error from a (possibly wrapped) error
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status
	}
	return 0
}

// errorPayload is the error body shape sent by the booking service
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func serverError(status int, body []byte) *APIError {
	var payload errorPayload
	// non-JSON bodies fall through to the generic message
	_ = json.Unmarshal(body, &payload)

	message := payload.Error
	if message == "" {
		message = payload.Message
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d Error", status)
	}
	return &APIError{
		Message: message,
		Status:  status,
		Code:    payload.Code,
	}
}

func transportError(err error) *APIError {
	return &APIError{
		Message: networkErrorMessage,
		Status:  0,
		Code:    CodeNetworkError,
		Err:     err,
	}
}

func unknownError(err error) *APIError {
	message := unknownErrorMessage
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	return &APIError{
		Message: message,
		Status:  0,
		Code:    CodeUnknownError,
		Err:     err,
	}
}

// NormalizeError converts any error into an *APIError, keeping one that is already normalised
func NormalizeError(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr
	}
	return unknownError(err)
}
