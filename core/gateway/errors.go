package gateway

import (
	"net/http"
)

// Kind classifies the errors the gateway reports to clients
type Kind int

// all error kinds
const (
	MissingApiKey Kind = iota + 1
	InvalidApiKey
	SessionAuthenticationFailed
	WrongCredentials
	ModelNotFound
	ModelNotConfigured
	MethodNotAllowed
	NoFieldsSelected
	NoIdProvided
	ResourceNotFound
	InvalidPayload
	AdapterError
)

var kindMessages = map[Kind]string{
	MissingApiKey:               "No API Key Provided",
	InvalidApiKey:               "Invalid API Key",
	SessionAuthenticationFailed: "Authentication failed",
	WrongCredentials:            "wrong login credentials",
	ModelNotFound:               "Invalid model, check spelling or maybe the related module is not installed",
	ModelNotConfigured:          "No Record Created for the model",
	MethodNotAllowed:            "Method Not Allowed",
	NoFieldsSelected:            "No fields selected for the model",
	NoIdProvided:                "No ID Provided",
	ResourceNotFound:            "Resource not found",
	InvalidPayload:              "Invalid JSON Data",
	AdapterError:                "Error processing request",
}

var kindStatus = map[Kind]int{
	MissingApiKey:               http.StatusUnauthorized,
	InvalidApiKey:               http.StatusUnauthorized,
	SessionAuthenticationFailed: http.StatusUnauthorized,
	WrongCredentials:            http.StatusUnauthorized,
	ModelNotFound:               http.StatusNotFound,
	ModelNotConfigured:          http.StatusForbidden,
	MethodNotAllowed:            http.StatusMethodNotAllowed,
	NoFieldsSelected:            http.StatusBadRequest,
	NoIdProvided:                http.StatusBadRequest,
	ResourceNotFound:            http.StatusNotFound,
	InvalidPayload:              http.StatusBadRequest,
	AdapterError:                http.StatusInternalServerError,
}

var kindNames = map[Kind]string{
	MissingApiKey:               "missing_api_key",
	InvalidApiKey:               "invalid_api_key",
	SessionAuthenticationFailed: "session_authentication_failed",
	WrongCredentials:            "wrong_credentials",
	ModelNotFound:               "model_not_found",
	ModelNotConfigured:          "model_not_configured",
	MethodNotAllowed:            "method_not_allowed",
	NoFieldsSelected:            "no_fields_selected",
	NoIdProvided:                "no_id_provided",
	ResourceNotFound:            "resource_not_found",
	InvalidPayload:              "invalid_payload",
	AdapterError:                "adapter_error",
}

// Message returns the client facing message of the kind
func (k Kind) Message() string {
	return kindMessages[k]
}

// Status returns the HTTP status code of the kind
func (k Kind) Status() int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// String returns the name of the kind as used in metrics
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is an error reported to the client
type Error struct {
	Kind Kind
	// Detail is appended to the message of invalid payloads and adapter errors
	Detail string
	// Err is the underlying error. It is logged, never sent to the client.
	Err error
}

func newError(kind Kind, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	if err != nil && (kind == AdapterError || kind == InvalidPayload) {
		e.Detail = err.Error()
	}
	return e
}

// Message returns the client facing message
func (e *Error) Message() string {
	if e.Detail == "" {
		return e.Kind.Message()
	}
	return e.Kind.Message() + ": " + e.Detail
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
