// Package middleware wraps RPC handlers in reusable layers.
//
// Client and server share one signature: on the client the innermost handler is the
// transport round trip, on the server it is method dispatch. Chain(A, B, C)(h) builds
// A(B(C(h))), so A sees the call first and the result last.
package middleware

import (
	"context"
	"hello-rpc/message"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("middleware")

type HandlerFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one; the first argument is the outermost layer.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
