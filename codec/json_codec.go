package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hello-rpc/message"
	"hello-rpc/rpcerr"
	"io"
	"unicode/utf8"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug.
// Cons: slower due to reflection + string parsing, larger payload (field names repeated).
//
// Decoding is strict: unknown fields, missing fields, trailing data and invalid
// UTF-8 are all rejected.
type JSONCodec struct{}

type jsonRequest struct {
	Method  *string `json:"method"`
	Payload *string `json:"payload"`
}

type jsonResponse struct {
	OK      *bool  `json:"ok"`
	Payload string `json:"payload"`
	Error   string `json:"error"`
}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.Request:
		if err := msg.Validate(); err != nil {
			return nil, err
		}
	case *message.Response:
		if err := msg.Validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("JSONCodec: unsupported type %T", v)
	}
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	if !utf8.Valid(data) {
		return rpcerr.Malformed("json body is not valid utf-8")
	}

	switch msg := v.(type) {
	case *message.Request:
		var w jsonRequest
		if err := strictUnmarshal(data, &w); err != nil {
			return err
		}
		if w.Method == nil || w.Payload == nil {
			return rpcerr.Malformed("json request misses method or payload")
		}
		*msg = message.Request{Method: *w.Method, Payload: *w.Payload}
		return msg.Validate()

	case *message.Response:
		var w jsonResponse
		if err := strictUnmarshal(data, &w); err != nil {
			return err
		}
		if w.OK == nil {
			return rpcerr.Malformed("json response misses ok tag")
		}
		*msg = message.Response{OK: *w.OK, Payload: w.Payload, Error: w.Error}
		return msg.Validate()

	default:
		return fmt.Errorf("JSONCodec: unsupported type %T", v)
	}
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return rpcerr.Malformed("json: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return rpcerr.Malformed("json: trailing data after message")
	}
	return nil
}
