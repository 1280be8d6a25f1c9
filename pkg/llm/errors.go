package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, malformed structured output.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authentication failures, invalid configuration, caller cancellation.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ErrMalformedOutput marks a response that did not have the requested shape.
var ErrMalformedOutput = errors.New("malformed model output")

// ErrEmptyResponse is returned when the provider answered without any choice.
var ErrEmptyResponse = errors.New("empty model response")

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	Err      error
	Category Category
	// Attempts is the number of attempts that have been made.
	Attempts int
	// Op describes what operation was being attempted.
	Op string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)", e.Op, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable.
func Transient(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Op: op}
}

// Permanent marks err as not retryable.
func Permanent(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Op: op}
}

var transientMarkers = []string{
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"resource exhausted",
	"resource_exhausted",
	"overloaded",
	"unavailable",
	"timeout",
	"timed out",
	"connection reset",
	"eof",
}

// Categorize determines how an error should be handled.
// Provider SDKs mostly return opaque errors, so unknown errors are matched
// on their message before defaulting to permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrMalformedOutput),
		errors.Is(err, ErrEmptyResponse):
		return CategoryTransient
	case errors.Is(err, context.Canceled):
		return CategoryPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return CategoryTransient
		}
	}
	return CategoryPermanent
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return Categorize(err) == CategoryTransient
}
