package middleware

import (
	"context"
	"errors"
	"fmt"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// UnknownMethod is the method label of calls whose name fails the known check.
const UnknownMethod = "unknown"

// Metrics records per-method call counters and latency histograms in the default
// VictoriaMetrics set, named <prefix>_calls_total and <prefix>_call_duration_seconds.
// Every method name gets its own series, so use it only where names are trusted.
func Metrics(prefix string) Middleware {
	return MetricsFor(prefix, nil)
}

// MetricsFor is Metrics with the method label limited to names known reports true for;
// everything else is counted as UnknownMethod. A nil known accepts every name.
func MetricsFor(prefix string, known func(method string) bool) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			method := req.Method
			if known != nil && !known(method) {
				method = UnknownMethod
			}
			outcome := Outcome(resp, err)
			metrics.GetOrCreateCounter(fmt.Sprintf(`%s_calls_total{method=%q,outcome=%q}`, prefix, method, outcome)).Inc()
			metrics.GetOrCreateHistogram(fmt.Sprintf(`%s_call_duration_seconds{method=%q}`, prefix, method)).UpdateDuration(start)
			return resp, err
		}
	}
}

// Outcome names the result of a call for metric labels.
func Outcome(resp *message.Response, err error) string {
	switch {
	case err == nil && resp != nil && resp.OK:
		return "ok"
	case err == nil:
		return "remote_error"
	case errors.Is(err, rpcerr.ErrTimeout):
		return "timeout"
	case errors.Is(err, rpcerr.ErrConnection):
		return "connection_error"
	case errors.Is(err, rpcerr.ErrMalformedMessage):
		return "malformed"
	case errors.Is(err, rpcerr.ErrWrite):
		return "write_error"
	case errors.Is(err, rpcerr.ErrRead):
		return "read_error"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
