package hello

import (
	"context"
	"errors"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"testing"
)

// recorder captures the requests the proxy builds
type recorder struct {
	reqs []message.Request
	resp *message.Response
	err  error
}

func (r *recorder) call(ctx context.Context, req *message.Request) (*message.Response, error) {
	r.reqs = append(r.reqs, *req)
	if r.err != nil {
		return nil, r.err
	}
	if r.resp != nil {
		return r.resp, nil
	}
	return message.Success(req.Payload), nil
}

func TestProxyBuildsRequests(t *testing.T) {
	rec := &recorder{}
	proxy := NewProxy(rec.call)

	got, err := proxy.SayHello(context.Background(), "ping")
	if err != nil || got != "ping" {
		t.Fatalf("SayHello: expect ping, got %q, %v", got, err)
	}
	if _, err := proxy.SendHello(context.Background(), "pong"); err != nil {
		t.Fatal(err)
	}

	want := []message.Request{
		{Method: MethodSayHello, Payload: "ping"},
		{Method: MethodSendHello, Payload: "pong"},
	}
	if len(rec.reqs) != len(want) {
		t.Fatalf("expect %d requests, got %d", len(want), len(rec.reqs))
	}
	for i := range want {
		if rec.reqs[i] != want[i] {
			t.Errorf("request %d: got %+v, want %+v", i, rec.reqs[i], want[i])
		}
	}
}

func TestProxyRemoteError(t *testing.T) {
	proxy := NewProxy((&recorder{resp: message.Failure("boom")}).call)

	got, err := proxy.SendHello(context.Background(), "x")
	if !errors.Is(err, rpcerr.ErrRemote) {
		t.Fatalf("expect ErrRemote, got %v", err)
	}
	var re *rpcerr.RemoteError
	if !errors.As(err, &re) || re.Method != MethodSendHello || re.Message != "boom" {
		t.Fatalf("unexpected remote error %v", err)
	}
	if got != "" {
		t.Fatalf("failed call returned payload %q", got)
	}
}

func TestProxyTransportError(t *testing.T) {
	failure := &rpcerr.OpError{Op: "dial", Kind: rpcerr.ErrConnection}
	proxy := NewProxy((&recorder{err: failure}).call)

	if _, err := proxy.SayHello(context.Background(), "x"); !errors.Is(err, rpcerr.ErrConnection) {
		t.Fatalf("expect ErrConnection, got %v", err)
	}
}

func TestGreeter(t *testing.T) {
	var svc Service = Greeter{}

	if got, _ := svc.SayHello(context.Background(), "ping"); got != "ping" {
		t.Fatalf("SayHello: expect ping, got %q", got)
	}
	if got, _ := svc.SendHello(context.Background(), "bob"); got != "hello, bob" {
		t.Fatalf("SendHello: expect 'hello, bob', got %q", got)
	}
}
