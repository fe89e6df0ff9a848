package client

import (
	"context"
	"hello-rpc/codec"
	"hello-rpc/message"
	"testing"
)

func benchClient(b *testing.B, ct codec.CodecType) *Client {
	b.Helper()
	_, host, port := startServer(b, "127.0.0.1:0")
	cfg := DefaultConfig()
	cfg.Host, cfg.Port, cfg.CodecType = host, port, ct
	c, err := New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

// one connection per call: this measures connect + exchange + close
func BenchmarkSerialCall(b *testing.B) {
	c := benchClient(b, codec.CodecTypeJSON)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := c.SayHello(ctx, "ping"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConcurrentCall(b *testing.B) {
	c := benchClient(b, codec.CodecTypeBinary)
	ctx := context.Background()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.SayHello(ctx, "ping"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkCodecJSON(b *testing.B) {
	benchmarkCodec(b, codec.CodecTypeJSON)
}

func BenchmarkCodecBinary(b *testing.B) {
	benchmarkCodec(b, codec.CodecTypeBinary)
}

func benchmarkCodec(b *testing.B, ct codec.CodecType) {
	cdc, _ := codec.GetCodec(ct)
	req := message.NewRequest("say_hello", "the quick brown fox")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cdc.Encode(req)
		codec.Decode[message.Request](cdc, data)
	}
}
