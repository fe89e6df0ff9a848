package protocol

import (
	"bytes"
	"errors"
	"hello-rpc/codec"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte("hello world")
	header := Header{
		CodecType: codec.CodecTypeJSON,
		MsgType:   MsgTypeRequest,
		BodyLen:   uint32(len(body)),
	}

	buf := bytes.NewBuffer(Encode(&header, body))

	decodedHeader, decodedBody, err := Decode(buf, DefaultMaxBodySize)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if *decodedHeader != header {
		t.Errorf("header mismatch: got %+v, want %+v", *decodedHeader, header)
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", string(decodedBody), string(body))
	}
}

func TestDecodeOneByteReads(t *testing.T) {
	// A frame delivered one byte per Read must still decode as a whole
	body := []byte("split across many segments")
	frame := Encode(&Header{CodecType: codec.CodecTypeBinary, MsgType: MsgTypeResponse, BodyLen: uint32(len(body))}, body)

	_, decodedBody, err := Decode(iotest.OneByteReader(bytes.NewReader(frame)), DefaultMaxBodySize)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %q, want %q", decodedBody, body)
	}
}

func TestDecodeInvalidHeaders(t *testing.T) {
	cases := map[string][]byte{
		"magic":    {0x00, 0x00, 0x00, Version, 0, byte(MsgTypeRequest), 0, 0, 0, 0},
		"version":  {MagicNumber, MagicByte2, MagicByte3, 0xFF, 0, byte(MsgTypeRequest), 0, 0, 0, 0},
		"codec":    {MagicNumber, MagicByte2, MagicByte3, Version, 0x09, byte(MsgTypeRequest), 0, 0, 0, 0},
		"msg type": {MagicNumber, MagicByte2, MagicByte3, Version, 0, 0x07, 0, 0, 0, 0},
		"too big":  {MagicNumber, MagicByte2, MagicByte3, Version, 0, byte(MsgTypeRequest), 0, 0x20, 0, 0},
	}

	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(bytes.NewReader(frame), 1024)
			if !errors.Is(err, rpcerr.ErrMalformedMessage) {
				t.Fatalf("expect ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	frame := Encode(&Header{CodecType: codec.CodecTypeJSON, MsgType: MsgTypeResponse}, nil)

	decodedHeader, decodedBody, err := Decode(bytes.NewReader(frame), DefaultMaxBodySize)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decodedHeader.BodyLen != 0 {
		t.Errorf("BodyLen mismatch: got %d, want 0", decodedHeader.BodyLen)
	}
	if len(decodedBody) != 0 {
		t.Errorf("Expected empty body, got length %d", len(decodedBody))
	}
}

func TestDecodeTruncated(t *testing.T) {
	body := []byte("0123456789")
	frame := Encode(&Header{CodecType: codec.CodecTypeJSON, MsgType: MsgTypeResponse, BodyLen: uint32(len(body))}, body)

	// Peer closed in the middle of the header
	if _, _, err := Decode(bytes.NewReader(frame[:4]), 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expect ErrUnexpectedEOF for short header, got %v", err)
	}
	// Peer closed right after the header
	if _, _, err := Decode(bytes.NewReader(frame[:HeaderSize]), 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expect ErrUnexpectedEOF for missing body, got %v", err)
	}
	// Peer closed in the middle of the body
	if _, _, err := Decode(bytes.NewReader(frame[:HeaderSize+3]), 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expect ErrUnexpectedEOF for short body, got %v", err)
	}
	// Nothing at all
	if _, _, err := Decode(bytes.NewReader(nil), 0); !errors.Is(err, io.EOF) {
		t.Fatalf("expect EOF for empty stream, got %v", err)
	}
}

func TestDecodeLargeBody(t *testing.T) {
	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	frame := Encode(&Header{CodecType: codec.CodecTypeBinary, MsgType: MsgTypeRequest, BodyLen: uint32(len(largeBody))}, largeBody)

	_, decodedBody, err := Decode(bytes.NewReader(frame), DefaultMaxBodySize)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decodedBody, largeBody) {
		t.Errorf("large body mismatch")
	}
}

// countingWriter records every Write call
type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestWriteMessageSingleWrite(t *testing.T) {
	for _, ct := range []codec.CodecType{codec.CodecTypeJSON, codec.CodecTypeBinary} {
		cdc, _ := codec.GetCodec(ct)
		w := &countingWriter{}

		req := message.NewRequest("say_hello", "ping")
		if err := WriteMessage(w, cdc, MsgTypeRequest, req); err != nil {
			t.Fatalf("%v: WriteMessage failed: %v", ct, err)
		}
		if w.writes != 1 {
			t.Fatalf("%v: expect exactly 1 write, got %d", ct, w.writes)
		}

		got, gotCodec, err := ReadMessage[message.Request](&w.Buffer, MsgTypeRequest, DefaultMaxBodySize)
		if err != nil {
			t.Fatalf("%v: ReadMessage failed: %v", ct, err)
		}
		if *got != *req {
			t.Fatalf("%v: got %+v, want %+v", ct, *got, *req)
		}
		if gotCodec.Type() != ct {
			t.Fatalf("expect codec %v, got %v", ct, gotCodec.Type())
		}
	}
}

func TestWriteMessageEncodeError(t *testing.T) {
	w := &countingWriter{}
	err := WriteMessage(w, &codec.JSONCodec{}, MsgTypeRequest, &message.Request{})

	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expect EncodeError, got %v", err)
	}
	if w.writes != 0 {
		t.Fatalf("nothing may be written when encoding fails, got %d writes", w.writes)
	}
}

func TestEncodeMessageMaxBody(t *testing.T) {
	req := message.NewRequest("say_hello", strings.Repeat("x", 64))

	_, err := EncodeMessage(&codec.BinaryCodec{}, MsgTypeRequest, req, 16)
	var encErr *EncodeError
	if !errors.As(err, &encErr) || !errors.Is(err, rpcerr.ErrMalformedMessage) {
		t.Fatalf("expect malformed EncodeError, got %v", err)
	}

	frame, err := EncodeMessage(&codec.BinaryCodec{}, MsgTypeRequest, req, 0)
	if err != nil {
		t.Fatal(err)
	}
	header, err := ParseHeader(frame[:HeaderSize], DefaultMaxBodySize)
	if err != nil {
		t.Fatal(err)
	}
	if int(header.BodyLen) != len(frame)-HeaderSize {
		t.Fatalf("header length %d does not match body %d", header.BodyLen, len(frame)-HeaderSize)
	}
}

func TestReadMessageWrongType(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, &codec.JSONCodec{}, MsgTypeRequest, message.NewRequest("say_hello", "ping")); err != nil {
		t.Fatal(err)
	}

	_, _, err := ReadMessage[message.Response](&buf, MsgTypeResponse, DefaultMaxBodySize)
	if !errors.Is(err, rpcerr.ErrMalformedMessage) {
		t.Fatalf("expect ErrMalformedMessage, got %v", err)
	}
}
