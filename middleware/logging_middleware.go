package middleware

import (
	"context"
	"hello-rpc/message"
	"time"
)

// Logging logs method, duration and outcome of every call.
func Logging() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			duration := time.Since(start)

			switch {
			case err != nil:
				Logger.Warningf("method=%s duration=%s error=%v", req.Method, duration, err)
			case !resp.OK:
				Logger.Infof("method=%s duration=%s remote_error=%q", req.Method, duration, resp.Error)
			default:
				Logger.Infof("method=%s duration=%s", req.Method, duration)
			}
			return resp, err
		}
	}
}
