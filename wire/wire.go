// Package wire carries the late-bound collaborator protocol over a byte
// stream: length-prefixed frames holding canonically encoded CBOR records.
// A Server exposes any dispatch.Collaborator on a listener; a Client is a
// dispatch.Collaborator backed by one connection.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/latebind/dispatch"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Operation codes.
const (
	opResolve uint8 = 1
	opInvoke  uint8 = 2
	opAddRef  uint8 = 3
	opRelease uint8 = 4
)

// Error kinds carried in responses. They map 1:1 onto the dispatch error
// taxonomy so failures round-trip as typed values.
const (
	errNone          uint8 = 0
	errUnknownMember uint8 = 1
	errInvocation    uint8 = 2
	errInvalidRef    uint8 = 3
	errOther         uint8 = 4
)

// request is one collaborator operation on the wire.
type request struct {
	Op     uint8
	Target uint64
	Name   string
	Member int32
	Kind   uint8
	Args   []wireValue
}

// response answers one request. Member carries resolve results; Result
// carries invoke results.
type response struct {
	Err     uint8
	Code    int32
	Message string
	Member  int32
	Result  wireValue
}

// wireValue is the serialized form of a dispatch.Value. Object values cross
// as raw handles; the counted references stay on the serving side.
type wireValue struct {
	Kind   uint8
	Bool   bool
	Int    int64
	Uint   uint64
	Float  float64
	Str    string
	Wide   []uint16
	Handle uint64
}

func encodeValue(v dispatch.Value) (wireValue, error) {
	switch v.Kind() {
	case dispatch.KindEmpty:
		return wireValue{Kind: uint8(dispatch.KindEmpty)}, nil
	case dispatch.KindBool:
		b, _ := v.AsBool()
		return wireValue{Kind: uint8(dispatch.KindBool), Bool: b}, nil
	case dispatch.KindInt:
		n, _ := v.AsInt64()
		return wireValue{Kind: uint8(dispatch.KindInt), Int: n}, nil
	case dispatch.KindUint:
		n, _ := v.AsUint64()
		return wireValue{Kind: uint8(dispatch.KindUint), Uint: n}, nil
	case dispatch.KindFloat:
		f, _ := v.AsFloat64()
		return wireValue{Kind: uint8(dispatch.KindFloat), Float: f}, nil
	case dispatch.KindString:
		s, _ := v.AsString()
		return wireValue{Kind: uint8(dispatch.KindString), Str: s}, nil
	case dispatch.KindWideString:
		w, _ := v.AsWideString()
		return wireValue{Kind: uint8(dispatch.KindWideString), Wide: w}, nil
	case dispatch.KindObject:
		h, _ := v.ObjectHandle()
		return wireValue{Kind: uint8(dispatch.KindObject), Handle: uint64(h)}, nil
	default:
		return wireValue{}, fmt.Errorf("wire: cannot encode %s value", v.Kind())
	}
}

func decodeValue(w wireValue) (dispatch.Value, error) {
	switch dispatch.Kind(w.Kind) {
	case dispatch.KindEmpty:
		return dispatch.Empty(), nil
	case dispatch.KindBool:
		return dispatch.FromBool(w.Bool), nil
	case dispatch.KindInt:
		return dispatch.FromInt64(w.Int), nil
	case dispatch.KindUint:
		return dispatch.FromUint64(w.Uint), nil
	case dispatch.KindFloat:
		return dispatch.FromFloat64(w.Float), nil
	case dispatch.KindString:
		return dispatch.FromString(w.Str), nil
	case dispatch.KindWideString:
		return dispatch.FromWideString(w.Wide), nil
	case dispatch.KindObject:
		return dispatch.FromHandle(dispatch.Handle(w.Handle)), nil
	default:
		return dispatch.Value{}, fmt.Errorf("wire: cannot decode value kind %d", w.Kind)
	}
}

func encodeArgs(args []dispatch.Value) ([]wireValue, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]wireValue, len(args))
	for i, a := range args {
		w, err := encodeValue(a)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func decodeArgs(in []wireValue) ([]dispatch.Value, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]dispatch.Value, len(in))
	for i, w := range in {
		v, err := decodeValue(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// errToWire flattens a dispatch error into a response's error fields.
func errToWire(err error) (kind uint8, code int32, msg string) {
	switch e := err.(type) {
	case *dispatch.UnknownMemberError:
		return errUnknownMember, 0, e.Name
	case *dispatch.InvocationError:
		return errInvocation, e.Code, e.Message
	default:
		if err == dispatch.ErrInvalidReference {
			return errInvalidRef, 0, ""
		}
		return errOther, 0, err.Error()
	}
}

// wireToErr rebuilds the typed dispatch error a response carries.
func wireToErr(kind uint8, code int32, msg string) error {
	switch kind {
	case errNone:
		return nil
	case errUnknownMember:
		return &dispatch.UnknownMemberError{Name: msg}
	case errInvocation:
		return &dispatch.InvocationError{Code: code, Message: msg}
	case errInvalidRef:
		return dispatch.ErrInvalidReference
	default:
		return &dispatch.InvocationError{Code: -1, Message: msg}
	}
}
