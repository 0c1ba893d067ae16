package services

// Typed service errors. Handlers map these to HTTP statuses; anything else is
// a 500.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// UpstreamError wraps a failed call to the external completion service. The
// cause goes to the logs; callers surface a generic message.
type UpstreamError struct{ Cause error }

func (e *UpstreamError) Error() string {
	if e.Cause == nil {
		return "upstream completion failed"
	}
	return "upstream completion failed: " + e.Cause.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Cause }
