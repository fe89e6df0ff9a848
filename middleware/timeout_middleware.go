package middleware

import (
	"context"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"time"
)

// Timeout bounds the whole call. The handler gets a context with the deadline; if it
// does not return in time the caller gets ErrTimeout and the late result is dropped.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp *message.Response
				err  error
			}
			done := make(chan result, 1) // Buffered so a late handler never blocks
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, &rpcerr.OpError{Op: "call", Kind: rpcerr.ErrTimeout, Err: ctx.Err()}
			}
		}
	}
}
