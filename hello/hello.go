// Package hello defines the hello service: its typed interface, the wire names of its
// methods, a client-side proxy and the demo implementation served by the peer.
//
// The wire names are the only place where methods are identified by string; callers
// program against Service.
package hello

import "context"

// ServiceName is the name under which the service registers in discovery.
const ServiceName = "hello"

// Wire method names, shared with the server peer.
const (
	MethodSayHello  = "say_hello"
	MethodSendHello = "send_hello"
)

// Service is the remotely callable capability.
type Service interface {
	SayHello(ctx context.Context, content string) (string, error)
	SendHello(ctx context.Context, content string) (string, error)
}

// Greeter is the reference implementation served by the peer.
type Greeter struct{}

// SayHello echoes content unchanged.
func (Greeter) SayHello(ctx context.Context, content string) (string, error) {
	return content, nil
}

// SendHello greets content.
func (Greeter) SendHello(ctx context.Context, content string) (string, error) {
	return "hello, " + content, nil
}
