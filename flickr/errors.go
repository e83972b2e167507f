package flickr

import "fmt"

// TransportError wraps a network or IO failure while talking to the
// remote service
type TransportError struct {
	cause error
}

func Transport(cause error) error {
	return &TransportError{cause: cause}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("flickr: transport error: %s", e.cause)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

// ServiceError is a structured rejection returned by the remote service
type ServiceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("flickr: service error %d: %s", e.Code, e.Message)
}

// DecodeError means the response body did not match the expected shape
type DecodeError struct {
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("flickr: unexpected response shape: %s", e.cause)
}

func (e *DecodeError) Unwrap() error {
	return e.cause
}
