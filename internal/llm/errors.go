package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorClass tells the caller whether an error is worth retrying.
type ErrorClass int

const (
	// ClassTransient covers rate limits, timeouts, connection failures and 5xx.
	ClassTransient ErrorClass = iota
	// ClassPermanent covers everything else.
	ClassPermanent
)

// String returns the string representation of the class.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps a provider error with its class.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

// Error returns a formatted error message.
func (c *ClassifiedError) Error() string {
	return fmt.Sprintf("%s llm error: %v", c.Class, c.Err)
}

// Unwrap returns the original error for errors.Is/As.
func (c *ClassifiedError) Unwrap() error {
	return c.Err
}

// transientMarkers are substrings of provider error messages that signal a
// temporary condition.
var transientMarkers = []string{
	"rate limit",
	"timeout",
	"connection",
	"temporary",
	"429",
	"500",
	"502",
	"503",
	"504",
	"overloaded",
}

// Classify determines the class of err.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassPermanent
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusClass(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusClass(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return ClassTransient
		}
	}
	return ClassPermanent
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return err != nil && Classify(err) == ClassTransient
}

func statusClass(code int) ErrorClass {
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return ClassTransient
	}
	return ClassPermanent
}

func classify(err error) error {
	return &ClassifiedError{Class: Classify(err), Err: err}
}
