// Package protocol implements the binary frame that carries one hello-rpc message.
//
// Every frame is length delimited: a fixed 10-byte header followed by a body of exactly
// bodyLen bytes. The receiver reads the header first, then loops until the whole body
// has arrived, so a message split across several TCP segments is never mistaken for a
// complete one.
//
// Frame format:
//
//	0      3  4  5  6         10
//	┌──────┬──┬──┬──┬─────────┬───────────────┐
//	│magic │v │ct│mt│ bodyLen │    body ...    │
//	│ hrp  │01│  │  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴───────────────┘
//
// There is no sequence number: a connection carries exactly one request and one response.
package protocol

import (
	"encoding/binary"
	"fmt"
	"hello-rpc/codec"
	"hello-rpc/rpcerr"
	"io"
	"math"
)

// Magic number bytes: "hrp" (hello-rpc protocol).
// Rejects non-protocol peers (e.g., HTTP clients hitting the wrong port) before any body is read.
const (
	MagicNumber byte = 0x68 // 'h'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 10 // 3 (magic) + 1 (version) + 1 (codec) + 1 (msgType) + 4 (bodyLen)

	// DefaultMaxBodySize bounds the body a reader accepts unless configured otherwise.
	DefaultMaxBodySize uint32 = 1 << 20
)

// MsgType distinguishes request and response frames.
type MsgType byte

const (
	MsgTypeRequest  MsgType = 0 // Client → Server
	MsgTypeResponse MsgType = 1 // Server → Client
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeRequest:
		return "request"
	case MsgTypeResponse:
		return "response"
	default:
		return fmt.Sprintf("msgtype(%d)", byte(t))
	}
}

// Header represents the fixed 10-byte frame header.
type Header struct {
	CodecType codec.CodecType // Serialization format of the body
	MsgType   MsgType         // Request or Response
	BodyLen   uint32          // Body length in bytes
}

// Encode builds a complete frame (header + body) in a single buffer.
func Encode(h *Header, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = byte(h.CodecType)
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.BodyLen)
	copy(buf[HeaderSize:], body)

	return buf
}

// ParseHeader validates a raw header. Failures are rpcerr.ErrMalformedMessage.
func ParseHeader(headerBuf []byte, maxBody uint32) (*Header, error) {
	if len(headerBuf) != HeaderSize {
		return nil, rpcerr.Malformed("header must be %d bytes, got %d", HeaderSize, len(headerBuf))
	}

	// Magic number — reject non-protocol connections
	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, rpcerr.Malformed("invalid magic number: %x", headerBuf[0:3])
	}

	if headerBuf[3] != Version {
		return nil, rpcerr.Malformed("unsupported version: %d", headerBuf[3])
	}

	codecType := codec.CodecType(headerBuf[4])
	if !codecType.Valid() {
		return nil, rpcerr.Malformed("unsupported codec type: %d", headerBuf[4])
	}

	msgType := MsgType(headerBuf[5])
	if msgType != MsgTypeRequest && msgType != MsgTypeResponse {
		return nil, rpcerr.Malformed("unsupported message type: %d", headerBuf[5])
	}

	bodyLen := binary.BigEndian.Uint32(headerBuf[6:10])
	if maxBody > 0 && bodyLen > maxBody {
		return nil, rpcerr.Malformed("body length %d exceeds limit %d", bodyLen, maxBody)
	}

	return &Header{
		CodecType: codecType,
		MsgType:   msgType,
		BodyLen:   bodyLen,
	}, nil
}

// Decode reads a complete frame (header + body) from r.
//
// I/O errors are returned unwrapped (io.EOF, io.ErrUnexpectedEOF, net errors) so the
// caller can classify them; header validation errors are rpcerr.ErrMalformedMessage.
// io.ReadFull loops until exactly N bytes have been read.
func Decode(r io.Reader, maxBody uint32) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	header, err := ParseHeader(headerBuf, maxBody)
	if err != nil {
		return nil, nil, err
	}

	body := make([]byte, header.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			// header arrived, body did not: the peer closed mid-message
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}

	return header, body, nil
}

// EncodeMessage serializes msg with cdc into a complete frame. Bodies longer than
// maxBody (0 means no limit beyond the 32-bit length field) are rejected, so a frame
// the peer would refuse is never sent. Failures are *EncodeError.
func EncodeMessage(cdc codec.Codec, msgType MsgType, msg any, maxBody uint32) ([]byte, error) {
	body, err := cdc.Encode(msg)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	if uint64(len(body)) > math.MaxUint32 {
		return nil, &EncodeError{Err: rpcerr.Malformed("body length %d overflows the length field", len(body))}
	}
	if maxBody > 0 && uint32(len(body)) > maxBody {
		return nil, &EncodeError{Err: rpcerr.Malformed("body length %d exceeds maximum %d", len(body), maxBody)}
	}

	return Encode(&Header{
		CodecType: cdc.Type(),
		MsgType:   msgType,
		BodyLen:   uint32(len(body)),
	}, body), nil
}

// WriteMessage encodes msg with cdc and writes the whole frame with a single Write.
// It returns only once the frame has been handed to w in full.
func WriteMessage(w io.Writer, cdc codec.Codec, msgType MsgType, msg any) error {
	frame, err := EncodeMessage(cdc, msgType, msg, 0)
	if err != nil {
		return err
	}
	return WriteFrame(w, frame)
}

// WriteFrame hands an already encoded frame to w with a single Write.
func WriteFrame(w io.Writer, frame []byte) error {
	n, err := w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadMessage reads one frame of the expected type and decodes its body into a new T
// using the codec named in the header.
func ReadMessage[T codec.Message](r io.Reader, want MsgType, maxBody uint32) (*T, codec.Codec, error) {
	header, body, err := Decode(r, maxBody)
	if err != nil {
		return nil, nil, err
	}
	if header.MsgType != want {
		return nil, nil, rpcerr.Malformed("expected %s frame, got %s", want, header.MsgType)
	}

	cdc, err := codec.GetCodec(header.CodecType)
	if err != nil {
		return nil, nil, rpcerr.Malformed("%v", err)
	}

	msg, err := codec.Decode[T](cdc, body)
	if err != nil {
		return nil, nil, err
	}
	return msg, cdc, nil
}

// EncodeError marks a failure to serialize a message before anything was written.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return "encode message: " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
