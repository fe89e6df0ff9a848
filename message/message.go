// Package message defines the two values exchanged over a hello-rpc connection.
//
// A Request is written once per connection; a Response is read once per connection.
// Both get serialized by the codec layer and wrapped in a protocol frame.
package message

import (
	"hello-rpc/rpcerr"
	"strings"
	"unicode/utf8"
)

// Request carries a single call.
type Request struct {
	Method  string `json:"method"`  // Wire method name, e.g. "say_hello"
	Payload string `json:"payload"` // The call's single string argument
}

// Response carries the outcome of a single call.
//
//   - OK == true:  Payload is the result, Error is empty.
//   - OK == false: Error is non-empty, Payload is empty.
type Response struct {
	OK      bool   `json:"ok"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewRequest builds a request for method with payload as its argument.
func NewRequest(method, payload string) *Request {
	return &Request{Method: method, Payload: payload}
}

// Success builds a successful response.
func Success(payload string) *Response {
	return &Response{OK: true, Payload: payload}
}

// Failure builds an error response. An empty text is replaced and invalid UTF-8 is
// repaired so the response stays valid on the wire.
func Failure(text string) *Response {
	if text == "" {
		text = "unknown error"
	}
	text = strings.ToValidUTF8(text, "\uFFFD")
	return &Response{OK: false, Error: text}
}

// Validate checks the request invariants.
func (r *Request) Validate() error {
	if r.Method == "" {
		return rpcerr.Malformed("request without method")
	}
	if !utf8.ValidString(r.Method) {
		return rpcerr.Malformed("request method is not valid utf-8")
	}
	if !utf8.ValidString(r.Payload) {
		return rpcerr.Malformed("request payload is not valid utf-8")
	}
	return nil
}

// Validate checks that exactly one of payload or error is meaningful.
func (r *Response) Validate() error {
	if r.OK && r.Error != "" {
		return rpcerr.Malformed("successful response carries error %q", r.Error)
	}
	if !r.OK && r.Error == "" {
		return rpcerr.Malformed("error response without error text")
	}
	if !r.OK && r.Payload != "" {
		return rpcerr.Malformed("error response carries payload")
	}
	if !utf8.ValidString(r.Payload) {
		return rpcerr.Malformed("response payload is not valid utf-8")
	}
	if !utf8.ValidString(r.Error) {
		return rpcerr.Malformed("response error is not valid utf-8")
	}
	return nil
}
