package codec

import (
	"encoding/binary"
	"fmt"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"math"
	"unicode/utf8"
)

// Body kinds written as the first byte of a binary body.
const (
	binaryKindRequest  byte = 0x01
	binaryKindResponse byte = 0x02
)

// BinaryCodec is a compact hand-written layout.
//
//	Request:  kind(1) | methodLen u16 | method | payloadLen u32 | payload
//	Response: kind(1) | ok(1) | payloadLen u32 | payload | errorLen u16 | error
//
// All integers are big-endian. A body must be consumed exactly, otherwise it is malformed.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.Request:
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		if len(msg.Method) > math.MaxUint16 {
			return nil, fmt.Errorf("BinaryCodec: method name too long (%d bytes)", len(msg.Method))
		}
		if uint64(len(msg.Payload)) > math.MaxUint32 {
			return nil, fmt.Errorf("BinaryCodec: payload too long (%d bytes)", len(msg.Payload))
		}
		total := 1 + 2 + len(msg.Method) + 4 + len(msg.Payload)
		buf := make([]byte, 0, total)
		buf = append(buf, binaryKindRequest)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Method)))
		buf = append(buf, msg.Method...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Payload)))
		buf = append(buf, msg.Payload...)
		return buf, nil

	case *message.Response:
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		if len(msg.Error) > math.MaxUint16 {
			return nil, fmt.Errorf("BinaryCodec: error text too long (%d bytes)", len(msg.Error))
		}
		if uint64(len(msg.Payload)) > math.MaxUint32 {
			return nil, fmt.Errorf("BinaryCodec: payload too long (%d bytes)", len(msg.Payload))
		}
		total := 1 + 1 + 4 + len(msg.Payload) + 2 + len(msg.Error)
		buf := make([]byte, 0, total)
		buf = append(buf, binaryKindResponse)
		if msg.OK {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Payload)))
		buf = append(buf, msg.Payload...)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Error)))
		buf = append(buf, msg.Error...)
		return buf, nil

	default:
		return nil, fmt.Errorf("BinaryCodec: unsupported type %T", v)
	}
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	r := &binaryReader{data: data}

	switch msg := v.(type) {
	case *message.Request:
		if kind := r.byte(); kind != binaryKindRequest {
			return r.fail("expected request body, got kind %#x", kind)
		}
		method := r.string(int(r.uint16()))
		payload := r.string(int(r.uint32()))
		if err := r.finish(); err != nil {
			return err
		}
		*msg = message.Request{Method: method, Payload: payload}
		return msg.Validate()

	case *message.Response:
		if kind := r.byte(); kind != binaryKindResponse {
			return r.fail("expected response body, got kind %#x", kind)
		}
		status := r.byte()
		if status > 1 {
			return r.fail("invalid ok flag %#x", status)
		}
		payload := r.string(int(r.uint32()))
		errText := r.string(int(r.uint16()))
		if err := r.finish(); err != nil {
			return err
		}
		*msg = message.Response{OK: status == 1, Payload: payload, Error: errText}
		return msg.Validate()

	default:
		return fmt.Errorf("BinaryCodec: unsupported type %T", v)
	}
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// binaryReader walks a body with bounds checks. The first failure sticks;
// later reads return zero values.
type binaryReader struct {
	data   []byte
	offset int
	err    error
}

func (r *binaryReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.offset < n {
		r.err = rpcerr.Malformed("binary body truncated at offset %d (need %d bytes, have %d)", r.offset, n, len(r.data)-r.offset)
		return nil
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b
}

func (r *binaryReader) byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *binaryReader) uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *binaryReader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *binaryReader) string(n int) string {
	b := r.take(n)
	if r.err == nil && !utf8.Valid(b) {
		r.err = rpcerr.Malformed("binary body has invalid utf-8 at offset %d", r.offset-n)
	}
	return string(b)
}

func (r *binaryReader) fail(format string, args ...any) error {
	if r.err != nil {
		return r.err
	}
	return rpcerr.Malformed(format, args...)
}

func (r *binaryReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.offset != len(r.data) {
		return rpcerr.Malformed("binary body has %d trailing bytes", len(r.data)-r.offset)
	}
	return nil
}
