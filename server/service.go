package server

import (
	"context"
	"fmt"
	"hello-rpc/message"
	"hello-rpc/middleware"
	"reflect"
	"strings"
	"unicode"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	stringType  = reflect.TypeOf("")
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// scanMethods returns a handler for every exported method of rcvr with the shape
//
//	func (T) Name(ctx context.Context, content string) (string, error)
//
// keyed by the snake_case wire name ("SayHello" → "say_hello").
func scanMethods(rcvr any) (map[string]middleware.HandlerFunc, error) {
	if rcvr == nil {
		return nil, fmt.Errorf("server: nil receiver")
	}
	val := reflect.ValueOf(rcvr)
	typ := val.Type()

	handlers := make(map[string]middleware.HandlerFunc)
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		mt := method.Type
		// In(0) is the receiver
		if mt.NumIn() != 3 || mt.NumOut() != 2 ||
			mt.In(1) != contextType || mt.In(2) != stringType ||
			mt.Out(0) != stringType || mt.Out(1) != errorType {
			continue
		}
		handlers[wireName(method.Name)] = bind(val.Method(i))
	}

	if len(handlers) == 0 {
		return nil, fmt.Errorf("server: %s has no method of the form func(context.Context, string) (string, error)", typ)
	}
	return handlers, nil
}

// bind adapts a bound method value to a HandlerFunc.
func bind(fn reflect.Value) middleware.HandlerFunc {
	return func(ctx context.Context, req *message.Request) (*message.Response, error) {
		out := fn.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(req.Payload)})
		if errv := out[1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
		return message.Success(out[0].String()), nil
	}
}

// wireName converts a Go method name to its snake_case wire name.
func wireName(name string) string {
	var sb strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// start a new word at a lower→upper edge and before the last capital of an acronym
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
