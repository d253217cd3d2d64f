package httputil

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/af-corp/ai-gateway/internal/ratelimit"
	"github.com/af-corp/ai-gateway/internal/resilience"
	"github.com/af-corp/ai-gateway/internal/router"
	"github.com/af-corp/ai-gateway/internal/types"
)

// StatusClientClosedRequest is the nginx convention for a request the
// client abandoned.
const StatusClientClosedRequest = 499

// WriteGatewayError maps a gateway error to a status code and error body.
// Rate-limit errors also set Retry-After in whole seconds.
func WriteGatewayError(w http.ResponseWriter, requestID string, err error) {
	var limited *ratelimit.LimitedError

	switch {
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.Wait.Seconds()))))
		WriteRateLimitError(w, requestID, err.Error())
	case errors.Is(err, context.Canceled):
		WriteError(w, requestID, StatusClientClosedRequest, "request_error", "request_cancelled", err.Error())
	case errors.Is(err, router.ErrNotFound):
		WriteNotFoundError(w, requestID, err.Error())
	case errors.Is(err, router.ErrDuplicateID):
		WriteConflictError(w, requestID, "duplicate_id", err.Error())
	case errors.Is(err, router.ErrCyclicFallback):
		WriteConflictError(w, requestID, "cyclic_fallback", err.Error())
	case errors.Is(err, router.ErrIncompatibleFallback):
		WriteConflictError(w, requestID, "incompatible_fallback", err.Error())
	case errors.Is(err, router.ErrInvalidService), errors.Is(err, types.ErrInvalidRequest):
		WriteBadRequestError(w, requestID, err.Error())
	case errors.Is(err, router.ErrNoServiceAvailable), errors.Is(err, router.ErrServiceDisabled):
		WriteServiceUnavailableError(w, requestID, err.Error())
	case errors.Is(err, resilience.ErrFailoverFailed):
		WriteUpstreamError(w, requestID, "failover_failed", err.Error())
	case errors.Is(err, resilience.ErrExecutionFailed):
		WriteUpstreamError(w, requestID, "execution_failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, requestID, http.StatusGatewayTimeout, "server_error", "timeout", err.Error())
	default:
		WriteInternalError(w, requestID, err.Error())
	}
}
