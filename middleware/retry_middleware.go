package middleware

import (
	"context"
	"errors"
	"hello-rpc/executor"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"math/rand"
	"time"
)

// Retry re-sends a call that failed to connect or timed out, with exponential backoff
// and +-10% jitter. Every other failure (remote error, malformed response, read or write
// error mid-exchange) is returned immediately. Nothing retries unless this middleware
// is installed.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			resp, err := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if err == nil || !Retryable(err) {
					return resp, err
				}

				jitter := 0.9 + 0.2*rand.Float64()
				delay := time.Duration(float64(baseDelay*time.Duration(1<<i)) * jitter)
				Logger.Infof("retry attempt %d/%d for %s in %s due to error: %v", i+1, maxRetries, req.Method, delay, err)

				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, err
				}
				resp, err = next(ctx, req)
			}
			return resp, err
		}
	}
}

// Retryable reports whether err happened before the peer could have processed the call
// or was a timeout. A closed executor never recovers.
func Retryable(err error) bool {
	if errors.Is(err, executor.ErrClosed) {
		return false
	}
	return errors.Is(err, rpcerr.ErrConnection) || errors.Is(err, rpcerr.ErrTimeout)
}
