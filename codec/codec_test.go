package codec

import (
	"errors"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"strings"
	"testing"
)

// testCodecs lists every codec that must honour the round-trip contract
var testCodecs = map[string]Codec{
	"JSON":   &JSONCodec{},
	"Binary": &BinaryCodec{},
}

func testRequests() []message.Request {
	return []message.Request{
		{Method: "say_hello", Payload: "ping"},
		{Method: "send_hello", Payload: ""},
		{Method: "say_hello", Payload: "multi\nline \"quoted\" 你好 🚀"},
		{Method: "say_hello", Payload: strings.Repeat("x", 64*1024)},
	}
}

func testResponses() []message.Response {
	return []message.Response{
		{OK: true, Payload: "pong"},
		{OK: true},
		{OK: true, Payload: "{\"not\":\"parsed\"}"},
		{OK: false, Error: "unknown method: nope"},
	}
}

func TestRequestRoundTrip(t *testing.T) {
	for name, cdc := range testCodecs {
		t.Run(name, func(t *testing.T) {
			for i, req := range testRequests() {
				data, err := cdc.Encode(&req)
				if err != nil {
					t.Fatalf("request %d: encode failed: %v", i, err)
				}

				decoded, err := Decode[message.Request](cdc, data)
				if err != nil {
					t.Fatalf("request %d: decode failed: %v", i, err)
				}
				if *decoded != req {
					t.Errorf("request %d mismatch: got %+v, want %+v", i, *decoded, req)
				}
			}
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	for name, cdc := range testCodecs {
		t.Run(name, func(t *testing.T) {
			for i, resp := range testResponses() {
				data, err := cdc.Encode(&resp)
				if err != nil {
					t.Fatalf("response %d: encode failed: %v", i, err)
				}

				decoded, err := Decode[message.Response](cdc, data)
				if err != nil {
					t.Fatalf("response %d: decode failed: %v", i, err)
				}
				if *decoded != resp {
					t.Errorf("response %d mismatch: got %+v, want %+v", i, *decoded, resp)
				}
			}
		})
	}
}

func TestEncodeRejectsInvalidMessages(t *testing.T) {
	for name, cdc := range testCodecs {
		t.Run(name, func(t *testing.T) {
			if _, err := cdc.Encode(&message.Request{Payload: "x"}); err == nil {
				t.Error("expect error for request without method")
			}
			if _, err := cdc.Encode(&message.Response{OK: true, Error: "x"}); err == nil {
				t.Error("expect error for inconsistent response")
			}
			if _, err := cdc.Encode("plain string"); err == nil {
				t.Error("expect error for unsupported type")
			}
			// a lossy JSON replacement or a binary body the peer rejects must fail here instead
			if _, err := cdc.Encode(message.NewRequest("say_hello", "a\xffb")); !errors.Is(err, rpcerr.ErrMalformedMessage) {
				t.Errorf("expect malformed for invalid utf-8 request, got %v", err)
			}
			if _, err := cdc.Encode(message.Success("a\xffb")); !errors.Is(err, rpcerr.ErrMalformedMessage) {
				t.Errorf("expect malformed for invalid utf-8 response, got %v", err)
			}
		})
	}
}

func TestJSONDecodeMalformed(t *testing.T) {
	cdc := &JSONCodec{}
	cases := map[string]string{
		"truncated":       `{"ok":true,"payload":"po`,
		"not json":        `hello`,
		"missing ok":      `{"payload":"pong"}`,
		"unknown field":   `{"ok":true,"payload":"pong","seq":1}`,
		"wrong type":      `{"ok":"yes","payload":"pong"}`,
		"trailing data":   `{"ok":true,"payload":"pong"}{"ok":true}`,
		"null":            `null`,
		"error w/o text":  `{"ok":false}`,
		"invalid utf-8":   "{\"ok\":true,\"payload\":\"\xff\xfe\"}",
		"empty":           ``,
		"request instead": `{"method":"say_hello","payload":"ping"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode[message.Response](cdc, []byte(body))
			if !errors.Is(err, rpcerr.ErrMalformedMessage) {
				t.Fatalf("expect ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestJSONDecodeRequestMissingPayload(t *testing.T) {
	_, err := Decode[message.Request](&JSONCodec{}, []byte(`{"method":"say_hello"}`))
	if !errors.Is(err, rpcerr.ErrMalformedMessage) {
		t.Fatalf("expect ErrMalformedMessage, got %v", err)
	}
}

func TestBinaryDecodeMalformed(t *testing.T) {
	cdc := &BinaryCodec{}
	valid, err := cdc.Encode(&message.Response{OK: true, Payload: "pong"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := cdc.Encode(&message.Request{Method: "say_hello", Payload: "ping"})
	if err != nil {
		t.Fatal(err)
	}

	badFlag := append([]byte{}, valid...)
	badFlag[1] = 7

	badUTF8 := []byte{binaryKindResponse, 1, 0, 0, 0, 2, 0xff, 0xfe, 0, 0}

	cases := map[string][]byte{
		"empty":           {},
		"truncated":       valid[:len(valid)-3],
		"trailing":        append(append([]byte{}, valid...), 0x00),
		"request instead": req,
		"bad ok flag":     badFlag,
		"invalid utf-8":   badUTF8,
		"huge length":     {binaryKindResponse, 1, 0xff, 0xff, 0xff, 0xff},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode[message.Response](cdc, body)
			if !errors.Is(err, rpcerr.ErrMalformedMessage) {
				t.Fatalf("expect ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestGetCodec(t *testing.T) {
	for _, ct := range []CodecType{CodecTypeJSON, CodecTypeBinary} {
		cdc, err := GetCodec(ct)
		if err != nil {
			t.Fatal(err)
		}
		if cdc.Type() != ct {
			t.Fatalf("expect codec type %v, got %v", ct, cdc.Type())
		}
	}
	if _, err := GetCodec(CodecType(9)); err == nil {
		t.Fatal("expect error for unknown codec type")
	}
}

func TestParseCodecType(t *testing.T) {
	cases := map[string]CodecType{"json": CodecTypeJSON, "": CodecTypeJSON, "binary": CodecTypeBinary}
	for name, want := range cases {
		got, err := ParseCodecType(name)
		if err != nil || got != want {
			t.Fatalf("ParseCodecType(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseCodecType("xml"); err == nil {
		t.Fatal("expect error for unknown codec name")
	}
}
