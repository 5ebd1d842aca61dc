package dispatch

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"unicode/utf16"
)

// ---------------------------------------------------------------------------
// Value: tagged-union representation of everything that crosses the
// late-bound boundary
// ---------------------------------------------------------------------------

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindWideString
	KindObject
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindUint:
		return "Uint"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindWideString:
		return "WideString"
	case KindObject:
		return "Object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// objectPayload carries an object-kind value's handle together with the
// collaborator that minted it. owned is true while the payload still holds
// the counted reference transferred by the call that produced it; values
// built with FromObject borrow and never own.
type objectPayload struct {
	c     Collaborator
	h     Handle
	owned atomic.Bool
}

// Value is a tagged union carrying one of: nothing, a boolean, a signed or
// unsigned integer, a float, a narrow (UTF-8) or wide (UTF-16) string, or a
// reference to another late-bound object.
//
// Values are immutable once constructed. Integers are stored at full width;
// the narrowing As* conversions range-check on the way out.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	w    []uint16
	obj  *objectPayload
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// Empty returns the null/empty marker value.
func Empty() Value {
	return Value{kind: KindEmpty}
}

// FromBool creates a Bool value.
func FromBool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// FromInt creates an Int value from a native int.
func FromInt(n int) Value { return FromInt64(int64(n)) }

// FromInt8 creates an Int value.
func FromInt8(n int8) Value { return FromInt64(int64(n)) }

// FromInt16 creates an Int value.
func FromInt16(n int16) Value { return FromInt64(int64(n)) }

// FromInt32 creates an Int value.
func FromInt32(n int32) Value { return FromInt64(int64(n)) }

// FromInt64 creates an Int value.
func FromInt64(n int64) Value {
	return Value{kind: KindInt, i: n}
}

// FromUint creates a Uint value from a native uint.
func FromUint(n uint) Value { return FromUint64(uint64(n)) }

// FromUint8 creates a Uint value.
func FromUint8(n uint8) Value { return FromUint64(uint64(n)) }

// FromUint16 creates a Uint value.
func FromUint16(n uint16) Value { return FromUint64(uint64(n)) }

// FromUint32 creates a Uint value.
func FromUint32(n uint32) Value { return FromUint64(uint64(n)) }

// FromUint64 creates a Uint value.
func FromUint64(n uint64) Value {
	return Value{kind: KindUint, u: n}
}

// FromFloat32 creates a Float value.
func FromFloat32(f float32) Value { return FromFloat64(float64(f)) }

// FromFloat64 creates a Float value.
func FromFloat64(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// FromString creates a narrow (UTF-8) string value.
func FromString(s string) Value {
	return Value{kind: KindString, s: s}
}

// FromWideString creates a wide (UTF-16) string value. The slice is not
// copied; callers must not mutate it afterwards.
func FromWideString(w []uint16) Value {
	return Value{kind: KindWideString, w: w}
}

// FromObject creates an Object value borrowing the given reference. The
// value does not own a counted reference: releasing the value is a no-op,
// and the caller's ref must outlive any use of the value.
func FromObject(ref *ObjectRef) Value {
	p := &objectPayload{c: ref.collab, h: ref.target}
	return Value{kind: KindObject, obj: p}
}

// FromHandle creates an Object value that owns one counted reference to the
// handle. Collaborator implementations use this to return object results;
// the dispatch layer attaches itself as the minting collaborator when the
// result crosses back.
func FromHandle(h Handle) Value {
	p := &objectPayload{h: h}
	p.owned.Store(true)
	return Value{kind: KindObject, obj: p}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the kind of value held.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty returns true if v is the null/empty marker.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsBool returns true if v holds a boolean.
func (v Value) IsBool() bool { return v.kind == KindBool }

// IsInt returns true if v holds a signed integer.
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsUint returns true if v holds an unsigned integer.
func (v Value) IsUint() bool { return v.kind == KindUint }

// IsFloat returns true if v holds a float.
func (v Value) IsFloat() bool { return v.kind == KindFloat }

// IsString returns true if v holds a narrow string.
func (v Value) IsString() bool { return v.kind == KindString }

// IsWideString returns true if v holds a wide string.
func (v Value) IsWideString() bool { return v.kind == KindWideString }

// IsObject returns true if v holds an object reference.
func (v Value) IsObject() bool { return v.kind == KindObject }

// ---------------------------------------------------------------------------
// Conversions out
// ---------------------------------------------------------------------------

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, &TypeMismatchError{Want: "bool", Got: v.kind}
	}
	return v.b, nil
}

// signed returns v's integer payload as int64, converting from Uint when it
// fits. want names the caller's requested native type for error reporting.
func (v Value) signed(want string) (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindUint:
		if v.u > math.MaxInt64 {
			return 0, &TypeMismatchError{Want: want, Got: v.kind}
		}
		return int64(v.u), nil
	default:
		return 0, &TypeMismatchError{Want: want, Got: v.kind}
	}
}

// AsInt64 returns the integer held by v.
func (v Value) AsInt64() (int64, error) {
	return v.signed("int64")
}

// AsInt returns the integer held by v as a native int.
func (v Value) AsInt() (int, error) {
	n, err := v.signed("int")
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt || n < math.MinInt {
		return 0, &TypeMismatchError{Want: "int", Got: v.kind}
	}
	return int(n), nil
}

// AsInt32 returns the integer held by v, failing if it does not fit.
func (v Value) AsInt32() (int32, error) {
	n, err := v.signed("int32")
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, &TypeMismatchError{Want: "int32", Got: v.kind}
	}
	return int32(n), nil
}

// AsInt16 returns the integer held by v, failing if it does not fit.
func (v Value) AsInt16() (int16, error) {
	n, err := v.signed("int16")
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt16 || n < math.MinInt16 {
		return 0, &TypeMismatchError{Want: "int16", Got: v.kind}
	}
	return int16(n), nil
}

// AsInt8 returns the integer held by v, failing if it does not fit.
func (v Value) AsInt8() (int8, error) {
	n, err := v.signed("int8")
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt8 || n < math.MinInt8 {
		return 0, &TypeMismatchError{Want: "int8", Got: v.kind}
	}
	return int8(n), nil
}

// unsigned returns v's integer payload as uint64, converting from Int when
// non-negative.
func (v Value) unsigned(want string) (uint64, error) {
	switch v.kind {
	case KindUint:
		return v.u, nil
	case KindInt:
		if v.i < 0 {
			return 0, &TypeMismatchError{Want: want, Got: v.kind}
		}
		return uint64(v.i), nil
	default:
		return 0, &TypeMismatchError{Want: want, Got: v.kind}
	}
}

// AsUint64 returns the unsigned integer held by v.
func (v Value) AsUint64() (uint64, error) {
	return v.unsigned("uint64")
}

// AsUint32 returns the unsigned integer held by v, failing if it does not fit.
func (v Value) AsUint32() (uint32, error) {
	n, err := v.unsigned("uint32")
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint32 {
		return 0, &TypeMismatchError{Want: "uint32", Got: v.kind}
	}
	return uint32(n), nil
}

// AsUint16 returns the unsigned integer held by v, failing if it does not fit.
func (v Value) AsUint16() (uint16, error) {
	n, err := v.unsigned("uint16")
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint16 {
		return 0, &TypeMismatchError{Want: "uint16", Got: v.kind}
	}
	return uint16(n), nil
}

// AsUint8 returns the unsigned integer held by v, failing if it does not fit.
func (v Value) AsUint8() (uint8, error) {
	n, err := v.unsigned("uint8")
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint8 {
		return 0, &TypeMismatchError{Want: "uint8", Got: v.kind}
	}
	return uint8(n), nil
}

// AsFloat64 returns the float held by v.
func (v Value) AsFloat64() (float64, error) {
	if v.kind != KindFloat {
		return 0, &TypeMismatchError{Want: "float64", Got: v.kind}
	}
	return v.f, nil
}

// AsFloat32 returns the float held by v, failing if the magnitude overflows
// float32.
func (v Value) AsFloat32() (float32, error) {
	if v.kind != KindFloat {
		return 0, &TypeMismatchError{Want: "float32", Got: v.kind}
	}
	if !math.IsInf(v.f, 0) && math.Abs(v.f) > math.MaxFloat32 {
		return 0, &TypeMismatchError{Want: "float32", Got: v.kind}
	}
	return float32(v.f), nil
}

// AsString returns the text held by v. Wide strings are decoded to UTF-8;
// narrow strings are returned as-is.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString:
		return v.s, nil
	case KindWideString:
		return string(utf16.Decode(v.w)), nil
	default:
		return "", &TypeMismatchError{Want: "string", Got: v.kind}
	}
}

// AsWideString returns the text held by v in UTF-16. Narrow strings are
// encoded; wide strings are returned as-is.
func (v Value) AsWideString() ([]uint16, error) {
	switch v.kind {
	case KindWideString:
		return v.w, nil
	case KindString:
		return utf16.Encode([]rune(v.s)), nil
	default:
		return nil, &TypeMismatchError{Want: "wide string", Got: v.kind}
	}
}

// Object returns a new ObjectRef sharing ownership of the handle held by v:
// the collaborator's count is incremented and the returned reference must be
// released independently of the value.
func (v Value) Object() (*ObjectRef, error) {
	if v.kind != KindObject {
		return nil, &TypeMismatchError{Want: "object reference", Got: v.kind}
	}
	if v.obj == nil || v.obj.c == nil || v.obj.h == 0 {
		return nil, ErrInvalidReference
	}
	v.obj.c.AddRef(v.obj.h)
	return NewObjectRef(v.obj.c, v.obj.h), nil
}

// ObjectHandle returns the raw handle held by an object value. Collaborator
// implementations use this to marshal object arguments; it does not touch
// the reference count.
func (v Value) ObjectHandle() (Handle, bool) {
	if v.kind != KindObject || v.obj == nil {
		return 0, false
	}
	return v.obj.h, true
}

// Release drops the counted reference owned by an object value produced by
// a call. It is idempotent and a no-op for every other value, including
// object values built with FromObject.
func (v Value) Release() {
	if v.kind != KindObject || v.obj == nil || v.obj.c == nil {
		return
	}
	if v.obj.owned.CompareAndSwap(true, false) {
		v.obj.c.Release(v.obj.h)
	}
}

// bindCollaborator attaches the minting collaborator to an object result
// coming back from Invoke. Results built with FromHandle carry no
// collaborator until they cross the dispatch layer.
func (v Value) bindCollaborator(c Collaborator) Value {
	if v.kind == KindObject && v.obj != nil && v.obj.c == nil {
		v.obj.c = c
	}
	return v
}

// ---------------------------------------------------------------------------
// Equality and display
// ---------------------------------------------------------------------------

// Equal reports observable equality. Narrow and wide strings holding the
// same text are equal; object values are equal when they refer to the same
// handle.
func (v Value) Equal(other Value) bool {
	if (v.kind == KindString || v.kind == KindWideString) &&
		(other.kind == KindString || other.kind == KindWideString) {
		a, _ := v.AsString()
		b, _ := other.AsString()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindEmpty:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindUint:
		return v.u == other.u
	case KindFloat:
		return v.f == other.f
	case KindObject:
		return v.obj != nil && other.obj != nil && v.obj.h == other.obj.h
	default:
		return false
	}
}

// String returns a human-readable rendering for logs and the CLI.
func (v Value) String() string {
	switch v.kind {
	case KindEmpty:
		return "empty"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindWideString:
		return strconv.Quote(string(utf16.Decode(v.w)))
	case KindObject:
		if v.obj == nil {
			return "object(nil)"
		}
		return fmt.Sprintf("object(#%d)", v.obj.h)
	default:
		return "invalid"
	}
}
