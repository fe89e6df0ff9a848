package hello

import (
	"context"
	"hello-rpc/message"
	"hello-rpc/middleware"
	"hello-rpc/rpcerr"
)

// Proxy implements Service by forwarding each call as a Request. It holds nothing but
// the handler it forwards to, normally a transport round trip behind middleware.
type Proxy struct {
	call middleware.HandlerFunc
}

var _ Service = (*Proxy)(nil)

// NewProxy binds a proxy to call.
func NewProxy(call middleware.HandlerFunc) *Proxy {
	return &Proxy{call: call}
}

func (p *Proxy) SayHello(ctx context.Context, content string) (string, error) {
	return p.invoke(ctx, MethodSayHello, content)
}

func (p *Proxy) SendHello(ctx context.Context, content string) (string, error) {
	return p.invoke(ctx, MethodSendHello, content)
}

// invoke returns the response payload unmodified, or an error and never a payload.
func (p *Proxy) invoke(ctx context.Context, method, content string) (string, error) {
	resp, err := p.call(ctx, message.NewRequest(method, content))
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &rpcerr.RemoteError{Method: method, Message: resp.Error}
	}
	return resp.Payload, nil
}
