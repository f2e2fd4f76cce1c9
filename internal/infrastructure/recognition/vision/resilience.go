package vision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from the chat-completions endpoint.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "vision status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("vision %s status: %s", operation, e.Status)
	}
	return fmt.Sprintf("vision %s status: %s: %s", operation, e.Status, e.Body)
}

// attemptClassifier decides whether a failed engine call is worth another
// attempt. An attempt that ran out of time is retried while the caller is still
// waiting; once the caller's context is done nothing is retried.
func attemptClassifier(caller context.Context) resilience.ErrorClassifier {
	return func(err error) resilience.ErrorClassification {
		switch {
		case err == nil:
			return resilience.ErrorClassification{}
		case caller.Err() != nil:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		case isAttemptTimeout(err):
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case errors.Is(err, context.Canceled):
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		case isTransient(err):
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
		}
	}
}

// markTemporary tags failures a client may retry later: an overloaded or
// unreachable engine, a call that ran out of time, or an open breaker.
// A caller that went away is not told to come back.
func markTemporary(caller context.Context, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if errors.Is(caller.Err(), context.Canceled) {
		return err
	}
	if resilience.IsCircuitOpen(err) || isAttemptTimeout(err) || isTransient(err) {
		return domain.WrapError(domain.ErrTemporary, "vision "+operation, err)
	}
	return err
}

func isAttemptTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isTransient covers rate limiting, engine-side 5xx and connection failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
