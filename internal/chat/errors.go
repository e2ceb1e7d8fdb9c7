package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a failed chat call.
type ErrorKind string

const (
	KindTimeout        ErrorKind = "timeout"
	KindUnavailable    ErrorKind = "unavailable"
	KindEmptyReply     ErrorKind = "empty_reply"
	KindCanceled       ErrorKind = "canceled"
	KindInvalidRequest ErrorKind = "invalid_request"
)

// ServiceError is a failure of the remote chat service.
type ServiceError struct {
	Kind ErrorKind
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("chat %s: %v", e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// classify maps err to a ServiceError using the caller's context to tell a
// hang-up from a deadline. Only transient failures come out as unavailable.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return &ServiceError{Kind: KindCanceled, Err: err}
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return &ServiceError{Kind: KindTimeout, Err: err}
	case permanent(statusCode(err)):
		return &ServiceError{Kind: KindInvalidRequest, Err: err}
	default:
		return &ServiceError{Kind: KindUnavailable, Err: err}
	}
}

// statusCode returns the HTTP status the chat API answered with, or 0 when
// the call never got a response.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// permanent reports whether retrying a request that got status cannot help:
// any 4xx except 408 and 429.
func permanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
