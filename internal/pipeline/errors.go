package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request.
type Kind int

const (
	RateLimited Kind = iota + 1
	ResourceNotFound
	FetchTransientFailure
	GenerationFormatError
	InternalFailure
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case ResourceNotFound:
		return "resource_not_found"
	case FetchTransientFailure:
		return "fetch_failed"
	case GenerationFormatError:
		return "generation_format"
	case InternalFailure:
		return "internal"
	default:
		return "unknown"
	}
}

var (
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
	ErrPageNotFound       = errors.New("page classified as not found")
)

// Error is returned by Pipeline.Run for every failed request. URL is the
// resource identity involved, empty when the message had none.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or InternalFailure if err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return InternalFailure
}
