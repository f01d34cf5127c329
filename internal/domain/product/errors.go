package product

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrorKind classifies an AccessError.
type ErrorKind int

const (
	// KindClient means no response was received from the feed.
	KindClient ErrorKind = iota + 1
	// KindServer means the feed answered, but the answer was a failure.
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindClient:
		return "client_error"
	case KindServer:
		return "server_error"
	default:
		return "unknown"
	}
}

// AccessError is the only error shape catalog consumers observe.
type AccessError struct {
	Kind    ErrorKind
	Status  int // zero for KindClient
	Message string
}

// ClientError reports a failure that happened before any response was produced.
func ClientError(message string) *AccessError {
	return &AccessError{Kind: KindClient, Message: message}
}

// ServerError reports a response that indicates failure.
func ServerError(status int, message string) *AccessError {
	return &AccessError{Kind: KindServer, Status: status, Message: message}
}

// Error returns the user-facing description of the failure.
func (e *AccessError) Error() string {
	if e.Kind == KindServer {
		return fmt.Sprintf("Server returned code: %d, error message is: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("An error occurred: %s", e.Message)
}

// IsClient reports whether the request never reached the feed.
func (e *AccessError) IsClient() bool { return e.Kind == KindClient }

// IsServer reports whether the feed rejected the request.
func (e *AccessError) IsServer() bool { return e.Kind == KindServer }

// AsAccessError extracts an *AccessError from err's chain.
func AsAccessError(err error) (*AccessError, bool) {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
