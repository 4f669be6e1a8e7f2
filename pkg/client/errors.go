package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassNetwork covers connection failures, timeouts and cancelled contexts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassAuth covers token acquisition failures and 401/403 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassResponse covers other non-2xx responses and undecodable bodies.
	ErrorClassResponse ErrorClass = "response"
)

// Sentinels matched by errors.Is against any *APIError of the same class.
var (
	ErrNetwork  = errors.New("network error")
	ErrAuth     = errors.New("authentication error")
	ErrResponse = errors.New("response error")
)

// APIError describes a failed exchange with the catalog service.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Method     string
	URL        string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("catalog %s error", e.ErrorClass)
	if e.Method != "" {
		msg += fmt.Sprintf(" (%s %s", e.Method, e.URL)
		if e.StatusCode > 0 {
			msg += fmt.Sprintf(", status %d", e.StatusCode)
		}
		msg += ")"
	} else if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the class sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.ErrorClass == ErrorClassNetwork
	case ErrAuth:
		return e.ErrorClass == ErrorClassAuth
	case ErrResponse:
		return e.ErrorClass == ErrorClassResponse
	default:
		return false
	}
}

// NewResponseError reports a body that could not be interpreted.
func NewResponseError(method, url, message string, err error) *APIError {
	return &APIError{
		ErrorClass: ErrorClassResponse,
		Method:     method,
		URL:        url,
		Message:    message,
		Err:        err,
	}
}

// ClassOf returns the class of the first *APIError in err's chain, or "".
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}
