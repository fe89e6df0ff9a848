// Package client is the entry point for calling a hello peer.
//
// A Client is bound to one address for its whole life. It owns the executor that
// drives its exchanges (unless one is injected) and puts the configured middlewares
// between the service proxy and the transport:
//
//	SayHello → Proxy → Logging → Metrics → [Timeout] → [Retry] → [RateWait] → Transport
package client

import (
	"context"
	"fmt"
	"hello-rpc/executor"
	"hello-rpc/hello"
	"hello-rpc/loadbalance"
	"hello-rpc/middleware"
	"hello-rpc/registry"
	"hello-rpc/transport"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// MetricsPrefix names the client-side call metrics.
const MetricsPrefix = "hello_rpc_client"

// Client calls the hello service of one peer.
type Client struct {
	cfg       Config
	exec      executor.Executor
	ownsExec  bool
	transport *transport.Transport
	proxy     *hello.Proxy
	closeOnce sync.Once
}

var _ hello.Service = (*Client)(nil)

type options struct {
	exec        executor.Executor
	dialer      transport.Dialer
	middlewares []middleware.Middleware
}

type Option func(*options)

// WithExecutor injects the executor. The client does not close an injected executor.
func WithExecutor(exec executor.Executor) Option {
	return func(o *options) {
		o.exec = exec
	}
}

// WithDialer replaces the transport's dialer.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithMiddleware adds middlewares right in front of the transport.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mws...)
	}
}

// New builds a client bound to cfg.Host:cfg.Port.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{cfg: cfg, exec: o.exec}
	if c.exec == nil {
		c.exec = executor.NewPool(cfg.MaxInFlight)
		c.ownsExec = true
	}

	var topts []transport.Option
	if o.dialer != nil {
		topts = append(topts, transport.WithDialer(o.dialer))
	}
	t, err := transport.New(cfg.Transport(), c.exec, topts...)
	if err != nil {
		if c.ownsExec {
			c.exec.Close()
		}
		return nil, err
	}
	c.transport = t

	chain := []middleware.Middleware{middleware.Logging(), middleware.Metrics(MetricsPrefix)}
	if cfg.CallTimeout > 0 {
		chain = append(chain, middleware.Timeout(cfg.CallTimeout))
	}
	if cfg.Retries > 0 {
		delay := cfg.RetryBaseDelay
		if delay <= 0 {
			delay = DefaultRetryBaseDelay
		}
		chain = append(chain, middleware.Retry(cfg.Retries, delay))
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		chain = append(chain, middleware.RateWait(cfg.Rate, burst))
	}
	chain = append(chain, o.middlewares...)

	c.proxy = hello.NewProxy(middleware.Chain(chain...)(t.RoundTrip))
	Logger.Debugf("client bound to %s", t.Addr())
	return c, nil
}

// Discover resolves cfg.Service in reg once, picks an instance with bal and builds a
// client bound to it. The binding does not follow later registry changes.
func Discover(ctx context.Context, cfg Config, reg registry.Registry, bal loadbalance.Balancer, opts ...Option) (*Client, error) {
	if cfg.Service == "" {
		cfg.Service = hello.ServiceName
	}
	instances, err := reg.Discover(ctx, cfg.Service)
	if err != nil {
		return nil, err
	}
	inst, err := bal.Pick(cfg.BalanceKey, instances)
	if err != nil {
		return nil, fmt.Errorf("client: resolve %s: %w", cfg.Service, err)
	}
	cfg.Host, cfg.Port, err = inst.HostPort()
	if err != nil {
		return nil, err
	}
	Logger.Infof("resolved %s to %s (%s of %d)", cfg.Service, inst.Addr, bal.Name(), len(instances))
	return New(cfg, opts...)
}

// SayHello calls say_hello on the peer.
func (c *Client) SayHello(ctx context.Context, content string) (string, error) {
	return c.proxy.SayHello(ctx, content)
}

// SendHello calls send_hello on the peer.
func (c *Client) SendHello(ctx context.Context, content string) (string, error) {
	return c.proxy.SendHello(ctx, content)
}

// Service returns the typed service handle.
func (c *Client) Service() hello.Service {
	return c.proxy
}

// Addr returns the bound peer address.
func (c *Client) Addr() string {
	return c.transport.Addr()
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// Close waits for in-flight calls and releases the executor if the client created it,
// after which calls fail with executor.ErrClosed. It is safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.ownsExec {
			err = c.exec.Close()
		}
	})
	return err
}
