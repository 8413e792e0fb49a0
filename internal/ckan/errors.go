package ckan

import (
	"errors"
	"fmt"
)

// authorizationErrorType is the __type CKAN reports when the caller lacks
// permission or the API key is invalid.
const authorizationErrorType = "Authorization Error"

// TransportError is a network failure or a non-JSON, non-2xx response.
type TransportError struct {
	Action string
	Status int // 0 when the request never got a response
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ckan %s: http %d: %v", e.Action, e.Status, e.Err)
	}
	return fmt.Sprintf("ckan %s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ActionError is a server-reported failure ({"success": false, "error": {...}}).
type ActionError struct {
	Action  string
	Status  int
	Type    string
	Message string
	Fields  map[string][]string
}

func (e *ActionError) Error() string {
	msg := e.Message
	if msg == "" && len(e.Fields) > 0 {
		msg = fmt.Sprint(e.Fields)
	}
	if e.Type != "" {
		return fmt.Sprintf("ckan %s: %s: %s", e.Action, e.Type, msg)
	}
	return fmt.Sprintf("ckan %s: %s", e.Action, msg)
}

// Authorization reports whether the server rejected the caller's credentials.
func (e *ActionError) Authorization() bool {
	return e.Type == authorizationErrorType
}

// PayloadError is a response (or a field inside it) that could not be decoded.
type PayloadError struct {
	Action string
	Field  string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("ckan %s: malformed %s: %v", e.Action, e.Field, e.Err)
	}
	return fmt.Sprintf("ckan %s: malformed response: %v", e.Action, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// IsAuthorization reports whether err is (or wraps) an authorization failure.
func IsAuthorization(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae) && ae.Authorization()
}

// Kind classifies err for API responses: "authorization", "action",
// "payload", "transport" or "" for anything else.
func Kind(err error) string {
	var (
		ae *ActionError
		pe *PayloadError
		te *TransportError
	)
	switch {
	case errors.As(err, &ae):
		if ae.Authorization() {
			return "authorization"
		}
		return "action"
	case errors.As(err, &pe):
		return "payload"
	case errors.As(err, &te):
		return "transport"
	default:
		return ""
	}
}
