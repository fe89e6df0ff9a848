// Package codec converts hello-rpc messages to and from frame bodies.
//
// Codecs are pure: they never touch the network. The protocol package carries the
// codec type in every frame header, so the receiving side always decodes a body
// with the codec that produced it.
package codec

import (
	"fmt"
	"hello-rpc/message"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=Binary
}

// Valid reports whether t names a known codec.
func (t CodecType) Valid() bool {
	return t == CodecTypeJSON || t == CodecTypeBinary
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

// ParseCodecType maps a configuration name ("json", "binary") to a CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "json", "":
		return CodecTypeJSON, nil
	case "binary":
		return CodecTypeBinary, nil
	default:
		return 0, fmt.Errorf("unknown codec %q (expected json or binary)", name)
	}
}

// GetCodec returns the codec for codecType, or an error for unknown types.
func GetCodec(codecType CodecType) (Codec, error) {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}, nil
	case CodecTypeBinary:
		return &BinaryCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported codec type: %d", byte(codecType))
	}
}

// Message is the set of values a frame body can hold.
type Message interface {
	message.Request | message.Response
}

// Decode parses data into a new T using c. Any failure is an rpcerr.ErrMalformedMessage.
func Decode[T Message](c Codec, data []byte) (*T, error) {
	v := new(T)
	if err := c.Decode(data, v); err != nil {
		return nil, err
	}
	return v, nil
}
