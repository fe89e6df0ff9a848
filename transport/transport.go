// Package transport performs one RPC exchange per connection.
//
// Every call opens its own TCP connection, writes exactly one request frame, reads
// exactly one response frame and closes the connection on every exit path:
//
//	goroutine-1 ──Send──► conn-1 ──► Server
//	goroutine-2 ──Send──► conn-2 ──► Server
//	goroutine-3 ──Send──► conn-3 ──► Server
//
// Calls share nothing but the immutable configuration, so concurrent calls never see
// each other's bytes. The blocking connect/write/read sequence runs on the injected
// executor while the caller waits.
package transport

import (
	"context"
	"errors"
	"fmt"
	"hello-rpc/codec"
	"hello-rpc/executor"
	"hello-rpc/message"
	"hello-rpc/protocol"
	"hello-rpc/rpcerr"
	"net"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

// Dialer opens connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Transport sends requests to one fixed address.
type Transport struct {
	addr   string
	cfg    Config
	codec  codec.Codec
	exec   executor.Executor
	dialer Dialer
}

type Option func(*Transport)

// WithDialer replaces the default *net.Dialer.
func WithDialer(d Dialer) Option {
	return func(t *Transport) {
		t.dialer = d
	}
}

// New validates cfg and binds a transport to exec. The transport does not own exec.
func New(cfg Config, exec executor.Executor, opts ...Option) (*Transport, error) {
	if exec == nil {
		return nil, errors.New("transport: nil executor")
	}
	cfg = cfg.withDefaults()

	addr, err := cfg.Address()
	if err != nil {
		return nil, err
	}
	cdc, err := codec.GetCodec(cfg.CodecType)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		addr:  addr,
		cfg:   cfg,
		codec: cdc,
		exec:  exec,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dialer == nil {
		t.dialer = &net.Dialer{}
	}
	return t, nil
}

// Addr returns the "host:port" the transport dials.
func (t *Transport) Addr() string {
	return t.addr
}

// Config returns the effective configuration, defaults applied.
func (t *Transport) Config() Config {
	return t.cfg
}

// Send performs one exchange and returns the response payload.
// An error response from the peer is returned as *rpcerr.RemoteError.
func (t *Transport) Send(ctx context.Context, req *message.Request) (string, error) {
	resp, err := t.RoundTrip(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &rpcerr.RemoteError{Method: req.Method, Message: resp.Error}
	}
	return resp.Payload, nil
}

// RoundTrip performs one exchange and returns the decoded response, success or not.
// It has the middleware.HandlerFunc signature.
func (t *Transport) RoundTrip(ctx context.Context, req *message.Request) (*message.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, &rpcerr.OpError{Op: "encode", Addr: t.addr, Kind: rpcerr.ErrMalformedMessage, Err: err}
	}

	var resp *message.Response
	err := t.exec.Execute(ctx, func(ctx context.Context) error {
		r, err := t.exchange(ctx, req)
		resp = r
		return err
	})
	if err != nil {
		var opErr *rpcerr.OpError
		if !errors.As(err, &opErr) {
			// the executor refused or gave up before the exchange started
			err = &rpcerr.OpError{Op: "dial", Addr: t.addr, Kind: kindFor(ctx, rpcerr.ErrConnection), Err: err}
		}
		Logger.Debugf("%s %s failed: %v", req.Method, t.addr, err)
		return nil, err
	}
	return resp, nil
}

// exchange is the connect → write → read sequence. It runs on the executor.
func (t *Transport) exchange(ctx context.Context, req *message.Request) (*message.Response, error) {
	start := time.Now()

	// Encode before dialing: a request that cannot be framed never opens a connection
	frame, err := protocol.EncodeMessage(t.codec, protocol.MsgTypeRequest, req, t.cfg.MaxBodySize)
	if err != nil {
		return nil, &rpcerr.OpError{Op: "encode", Addr: t.addr, Kind: rpcerr.ErrMalformedMessage, Err: err}
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, t.opError(ctx, "dial", rpcerr.ErrConnection, err)
	}
	// Released on every exit path: success, I/O failure, decode failure
	defer conn.Close()

	guard := &deadlineGuard{conn: conn}
	stop := context.AfterFunc(ctx, guard.expire)
	defer stop()

	// Write exactly one frame
	guard.set(conn.SetWriteDeadline, t.deadline(ctx, t.cfg.WriteTimeout))
	if err := protocol.WriteFrame(conn, frame); err != nil {
		return nil, t.opError(ctx, "write", rpcerr.ErrWrite, err)
	}

	// Read exactly one frame
	guard.set(conn.SetReadDeadline, t.deadline(ctx, t.cfg.ReadTimeout))
	resp, _, err := protocol.ReadMessage[message.Response](conn, protocol.MsgTypeResponse, t.cfg.MaxBodySize)
	if err != nil {
		if errors.Is(err, rpcerr.ErrMalformedMessage) {
			return nil, &rpcerr.OpError{Op: "decode", Addr: t.addr, Kind: rpcerr.ErrMalformedMessage, Err: err}
		}
		return nil, t.opError(ctx, "read", rpcerr.ErrRead, err)
	}

	Logger.Debugf("%s %s ok=%t in %s", req.Method, t.addr, resp.OK, time.Since(start))
	return resp, nil
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()
	return t.dialer.DialContext(dialCtx, "tcp", t.addr)
}

// deadline is now+d, or the context deadline when that comes first.
func (t *Transport) deadline(ctx context.Context, d time.Duration) time.Time {
	dl := time.Now().Add(d)
	if ctxDl, ok := ctx.Deadline(); ok && ctxDl.Before(dl) {
		return ctxDl
	}
	return dl
}

// opError classifies an I/O failure of step op. An expired bound becomes ErrTimeout
// while the step kind stays matchable through the cause, so a connect timeout is both
// ErrTimeout and ErrConnection.
func (t *Transport) opError(ctx context.Context, op string, kind error, err error) error {
	if ctxErr := contextErr(ctx); ctxErr != nil {
		err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	if kindFor(ctx, kind) == rpcerr.ErrTimeout || isTimeout(err) {
		err = fmt.Errorf("%w: %w", kind, err)
		kind = rpcerr.ErrTimeout
	}
	return &rpcerr.OpError{Op: op, Addr: t.addr, Kind: kind, Err: err}
}

// kindFor turns kind into ErrTimeout when ctx ran out of time.
func kindFor(ctx context.Context, kind error) error {
	if errors.Is(contextErr(ctx), context.DeadlineExceeded) {
		return rpcerr.ErrTimeout
	}
	return kind
}

// contextErr is ctx.Err(), except that a deadline already in the past counts as
// expired even if the context's own timer has not fired yet.
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// deadlineGuard serializes deadline updates with context expiry, so a step that
// installs its own deadline can never undo an expiry that already happened.
type deadlineGuard struct {
	mu      sync.Mutex
	conn    net.Conn
	expired bool
}

func (g *deadlineGuard) set(setter func(time.Time) error, deadline time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return
	}
	setter(deadline)
}

func (g *deadlineGuard) expire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = true
	// A deadline in the past unblocks any pending Read or Write immediately
	g.conn.SetDeadline(time.Unix(1, 0))
}
