package registry

import (
	"fmt"
	"reflect"

	"github.com/chazu/latebind/dispatch"
)

// ---------------------------------------------------------------------------
// Struct wrapping: expose a plain Go struct as a late-bound object
// ---------------------------------------------------------------------------

// WrapStruct registers a pointer-to-struct as a late-bound object and
// returns its handle (the caller owns the initial reference). Exported
// fields of scalar and string kinds become properties; exported methods
// become callable members under their Go names. Unsupported field kinds are
// simply not members.
//
// Wrapped methods may return nothing, a single convertible value, an error,
// or (value, error).
func (r *Registry) WrapStruct(goValue interface{}) (dispatch.Handle, error) {
	rv := reflect.ValueOf(goValue)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return 0, fmt.Errorf("registry: WrapStruct wants a non-nil pointer to struct, got %T", goValue)
	}
	elem := rv.Elem()
	t := elem.Type()

	so := &structObject{
		fields:  make(map[string]int),
		methods: make(map[string]reflect.Value),
	}
	so.v = elem

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || !supportedFieldKind(f.Type.Kind()) {
			continue
		}
		so.fields[f.Name] = i
	}

	pt := rv.Type()
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		so.methods[m.Name] = rv.Method(i)
	}

	return r.add(so), nil
}

type structObject struct {
	v       reflect.Value // the struct itself, addressable
	fields  map[string]int
	methods map[string]reflect.Value
}

func supportedFieldKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func (s *structObject) destroy(*Registry) {
	// Struct wrappers hold only scalar and string fields, so there are no
	// object references to release.
}

func (s *structObject) hasMember(name string) bool {
	if _, ok := s.fields[name]; ok {
		return true
	}
	_, ok := s.methods[name]
	return ok
}

func (s *structObject) get(name string) (dispatch.Value, *dispatch.InvocationError) {
	idx, ok := s.fields[name]
	if !ok {
		if _, isMethod := s.methods[name]; isMethod {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNotReadable, Message: fmt.Sprintf("%q is a method, not a property", name)}
		}
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNoMember, Message: fmt.Sprintf("no field %q", name)}
	}
	v, ok := goToValue(s.v.Field(idx))
	if !ok {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadValue, Message: fmt.Sprintf("field %q is not representable", name)}
	}
	return v, nil
}

func (s *structObject) put(name string, v dispatch.Value, byRef bool, _ *Registry) *dispatch.InvocationError {
	if byRef {
		return &dispatch.InvocationError{Code: CodeRefRequired, Message: "struct fields cannot hold object references"}
	}
	idx, ok := s.fields[name]
	if !ok {
		return &dispatch.InvocationError{Code: CodeNoMember, Message: fmt.Sprintf("no field %q", name)}
	}
	field := s.v.Field(idx)
	converted, err := valueToGo(v, field.Type())
	if err != nil {
		return &dispatch.InvocationError{Code: CodeBadValue, Message: err.Error()}
	}
	field.Set(converted)
	return nil
}

func (s *structObject) invoke(name string, args []dispatch.Value, _ *Registry) (dispatch.Value, error) {
	m, ok := s.methods[name]
	if !ok {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNotCallable, Message: fmt.Sprintf("%q is not callable", name)}
	}
	mt := m.Type()
	if mt.NumIn() != len(args) {
		return dispatch.Value{}, &dispatch.InvocationError{
			Code:    CodeBadArgCount,
			Message: fmt.Sprintf("%q wants %d arguments, got %d", name, mt.NumIn(), len(args)),
		}
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		converted, err := valueToGo(a, mt.In(i))
		if err != nil {
			return dispatch.Value{}, &dispatch.InvocationError{
				Code:    CodeBadValue,
				Message: fmt.Sprintf("argument %d of %q: %v", i, name, err),
			}
		}
		in[i] = converted
	}

	out := m.Call(in)
	return structResult(name, out)
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// structResult maps a Go method's return values onto one dispatch result.
func structResult(name string, out []reflect.Value) (dispatch.Value, error) {
	// Trailing error return, if any.
	if n := len(out); n > 0 && out[n-1].Type().Implements(errType) {
		if !out[n-1].IsNil() {
			err := out[n-1].Interface().(error)
			switch err.(type) {
			case *dispatch.InvocationError, *dispatch.UnknownMemberError, *dispatch.TypeMismatchError:
				return dispatch.Value{}, err
			default:
				return dispatch.Value{}, &dispatch.InvocationError{Code: CodeMethodFault, Message: err.Error()}
			}
		}
		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return dispatch.Empty(), nil
	case 1:
		v, ok := goToValue(out[0])
		if !ok {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadValue, Message: fmt.Sprintf("%q returned an unrepresentable value", name)}
		}
		return v, nil
	default:
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadValue, Message: fmt.Sprintf("%q returns too many values", name)}
	}
}

// goToValue converts a Go scalar or string to a dispatch Value.
func goToValue(rv reflect.Value) (dispatch.Value, bool) {
	switch rv.Kind() {
	case reflect.Bool:
		return dispatch.FromBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return dispatch.FromInt64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return dispatch.FromUint64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return dispatch.FromFloat64(rv.Float()), true
	case reflect.String:
		return dispatch.FromString(rv.String()), true
	default:
		return dispatch.Value{}, false
	}
}

// valueToGo converts a dispatch Value to the given Go type, range-checking
// on the way.
func valueToGo(v dispatch.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, err := v.AsBool()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := v.AsInt64()
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, t)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := v.AsUint64()
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, t)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := v.AsFloat64()
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("value %g overflows %s", f, t)
		}
		out.SetFloat(f)
	case reflect.String:
		s, err := v.AsString()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetString(s)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
	}
	return out, nil
}
