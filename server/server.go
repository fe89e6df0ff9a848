// Package server is the reference hello-rpc peer.
//
// Every accepted connection carries exactly one exchange:
//
//	Accept conn → go handleConn
//	  → read one request frame → middleware chain → dispatch (method table)
//	  → write one response frame in the request's codec → close
//
// Handler failures and unknown methods are answered with an error response; frames that
// cannot be parsed at all get no answer and the connection is closed.
package server

import (
	"context"
	"errors"
	"fmt"
	"hello-rpc/codec"
	"hello-rpc/message"
	"hello-rpc/middleware"
	"hello-rpc/protocol"
	"hello-rpc/registry"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

var ErrServerClosed = errors.New("server closed")

// Server dispatches requests to registered handlers.
type Server struct {
	cfg Config

	handlers    *xsync.MapOf[string, middleware.HandlerFunc] // wire name → handler
	conns       *xsync.MapOf[net.Conn, struct{}]             // live connections
	middlewares []middleware.Middleware

	registry    registry.Registry // nil when not using discovery
	serviceName string

	mu        sync.Mutex // guards the fields below; shutdown is only set while held
	listener  net.Listener
	advertise string
	handler   middleware.HandlerFunc
	wg        sync.WaitGroup
	shutdown  atomic.Bool

	baseCtx context.Context
	cancel  context.CancelFunc
}

type Option func(*Server)

// WithRegistry publishes the server as serviceName in reg while it serves.
func WithRegistry(reg registry.Registry, serviceName string) Option {
	return func(s *Server) {
		s.registry = reg
		s.serviceName = serviceName
	}
}

// NewServer creates a server with an empty method table.
func NewServer(cfg Config, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg.withDefaults(),
		handlers: xsync.NewMapOf[string, middleware.HandlerFunc](),
		conns:    xsync.NewMapOf[net.Conn, struct{}](),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register exposes every method of rcvr shaped func(context.Context, string) (string, error)
// under its snake_case name. Names already taken are an error and nothing is registered.
func (s *Server) Register(rcvr any) error {
	handlers, err := scanMethods(rcvr)
	if err != nil {
		return err
	}
	for name := range handlers {
		if _, ok := s.handlers.Load(name); ok {
			return fmt.Errorf("server: method %q already registered", name)
		}
	}
	for name, fn := range handlers {
		s.handlers.Store(name, fn)
		Logger.Debugf("registered method %s", name)
	}
	return nil
}

// Handle registers fn under the wire name, replacing any previous handler.
func (s *Server) Handle(name string, fn middleware.HandlerFunc) {
	s.handlers.Store(name, fn)
}

// HasMethod reports whether a handler is registered under name.
func (s *Server) HasMethod(name string) bool {
	_, ok := s.handlers.Load(name)
	return ok
}

// Use appends a middleware. Middlewares must be added before Serve.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Addr returns the listener address, nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on the configured endpoint and serves.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Endpoint, err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Shutdown, which makes it return nil.
func (s *Server) Serve(lis net.Listener) error {
	chain := s.middlewares
	if s.cfg.HandlerTimeout > 0 {
		chain = append(chain[:len(chain):len(chain)], middleware.Timeout(s.cfg.HandlerTimeout))
	}
	advertise := s.cfg.Advertise
	if advertise == "" {
		advertise = lis.Addr().String()
	}

	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		lis.Close()
		return ErrServerClosed
	}
	s.listener = lis
	s.handler = middleware.Chain(chain...)(s.dispatch)
	if s.registry != nil {
		s.advertise = advertise
	}
	s.mu.Unlock()

	if s.registry != nil {
		ctx, cancel := context.WithTimeout(s.baseCtx, 5*time.Second)
		err := s.registry.Register(ctx, s.serviceName, registry.Instance{Addr: advertise}, s.cfg.RegistryTTL)
		cancel()
		if err != nil {
			lis.Close()
			return err
		}
		// Shutdown may have deregistered before the entry existed
		if s.shutdown.Load() {
			s.deregister(advertise, 5*time.Second)
		}
	}

	Logger.Infof("serving on %s", lis.Addr())
	for {
		conn, err := lis.Accept()
		if err != nil {
			// Shutdown closes the listener, which is not an error
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

// track counts conn as in flight unless shutdown has begun. Holding mu orders every
// wg.Add before the wg.Wait in Shutdown.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.wg.Add(1)
	s.conns.Store(conn, struct{}{})
	return true
}

// handleConn runs exactly one exchange and closes conn.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.conns.Delete(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	header, body, err := protocol.Decode(conn, s.cfg.MaxBodySize)
	if err != nil {
		Logger.Debugf("%s: dropping connection: %v", conn.RemoteAddr(), err)
		return
	}
	if header.MsgType != protocol.MsgTypeRequest {
		Logger.Debugf("%s: dropping connection: unexpected %s frame", conn.RemoteAddr(), header.MsgType)
		return
	}
	cdc, err := codec.GetCodec(header.CodecType)
	if err != nil {
		return
	}

	var resp *message.Response
	req, err := codec.Decode[message.Request](cdc, body)
	if err != nil {
		resp = message.Failure(err.Error())
	} else {
		resp = s.call(req)
	}

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := protocol.WriteMessage(conn, cdc, protocol.MsgTypeResponse, resp); err != nil {
		Logger.Warningf("%s: write response: %v", conn.RemoteAddr(), err)
	}
}

// call runs the handler chain and folds every failure into an error response.
func (s *Server) call(req *message.Request) *message.Response {
	resp, err := s.handler(s.baseCtx, req)
	if err != nil {
		return message.Failure(err.Error())
	}
	if resp == nil {
		return message.Failure("no response from " + req.Method)
	}
	if err := resp.Validate(); err != nil {
		return message.Failure(err.Error())
	}
	return resp
}

func (s *Server) deregister(advertise string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.registry.Deregister(ctx, s.serviceName, advertise); err != nil {
		Logger.Warningf("deregister: %v", err)
	}
}

// dispatch is the innermost handler: it looks up the method table.
func (s *Server) dispatch(ctx context.Context, req *message.Request) (*message.Response, error) {
	fn, ok := s.handlers.Load(req.Method)
	if !ok {
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}
	return fn(ctx, req)
}

// Shutdown stops the server:
//  1. deregister, so clients stop resolving this instance
//  2. close the listener
//  3. wait up to timeout for in-flight exchanges, then cancel handlers and drop
//     the remaining connections
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		return nil
	}
	s.shutdown.Store(true)
	advertise := s.advertise
	lis := s.listener
	s.mu.Unlock()

	if advertise != "" {
		s.deregister(advertise, timeout)
	}
	if lis != nil {
		lis.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		s.conns.Range(func(conn net.Conn, _ struct{}) bool {
			conn.Close()
			return true
		})
		return fmt.Errorf("server: timeout waiting for %d in-flight exchanges", s.conns.Size())
	}
}
