package translator

import "fmt"

// BackendError classifies a failed backend attempt. Retryable errors are
// worth another attempt against the same backend; EscalateToFallback means
// the same backend will keep rejecting this content (safety block) and the
// fallback should take over immediately.
type BackendError struct {
	Backend            string
	Message            string
	Retryable          bool
	EscalateToFallback bool
	Cause              error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Cause }

func retryable(backend, format string, args ...any) *BackendError {
	return &BackendError{Backend: backend, Message: fmt.Sprintf(format, args...), Retryable: true}
}

func retryableWithCause(backend string, cause error, format string, args ...any) *BackendError {
	return &BackendError{Backend: backend, Message: fmt.Sprintf(format, args...), Retryable: true, Cause: cause}
}

func fatal(backend, format string, args ...any) *BackendError {
	return &BackendError{Backend: backend, Message: fmt.Sprintf(format, args...)}
}

func safetyBlocked(backend, reason string) *BackendError {
	return &BackendError{
		Backend:            backend,
		Message:            fmt.Sprintf("content blocked by safety filter: %s", reason),
		EscalateToFallback: true,
	}
}

// ExhaustedError reports that both backends ran out of attempts for a
// chunk. It keeps the last error from each side for diagnosis.
type ExhaustedError struct {
	PrimaryErr  error
	FallbackErr error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all translation backends exhausted: primary: %v; fallback: %v",
		e.PrimaryErr, e.FallbackErr)
}
