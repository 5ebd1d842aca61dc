package registry

import (
	"fmt"
	"sync"

	"github.com/chazu/latebind/dispatch"
)

// Method is a callable member of a map-backed Object. It receives arguments
// in caller order. An object-valued result must carry a transferred
// reference; build it with Registry.ObjectResult.
type Method func(args []dispatch.Value) (dispatch.Value, error)

// Object is a map-backed late-bound object: named properties plus named
// methods. Property values holding objects are stored by handle and keep
// their own counted reference until overwritten or the object dies.
//
// Put and put-by-reference differ only for non-object values: a put-by-
// reference of a scalar or string is rejected with CodeRefRequired. For
// object values both flavors store a counted reference, which is the only
// reference semantics an in-process host has.
type Object struct {
	mu      sync.RWMutex
	props   map[string]dispatch.Value
	methods map[string]Method
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{
		props:   make(map[string]dispatch.Value),
		methods: make(map[string]Method),
	}
}

// SetProp defines or overwrites a property. An object-valued property
// seeded here transfers the caller's counted reference to this object,
// which releases it when the property is overwritten or the object dies.
func (o *Object) SetProp(name string, v dispatch.Value) *Object {
	o.mu.Lock()
	o.props[name] = v
	o.mu.Unlock()
	return o
}

// DefineMethod defines or overwrites a callable member.
func (o *Object) DefineMethod(name string, m Method) *Object {
	o.mu.Lock()
	o.methods[name] = m
	o.mu.Unlock()
	return o
}

func (o *Object) hasMember(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, p := o.props[name]
	_, m := o.methods[name]
	return p || m
}

func (o *Object) get(name string) (dispatch.Value, *dispatch.InvocationError) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.props[name]
	if !ok {
		if _, isMethod := o.methods[name]; isMethod {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNotReadable, Message: fmt.Sprintf("%q is a method, not a property", name)}
		}
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNoMember, Message: fmt.Sprintf("no property %q", name)}
	}
	return v, nil
}

func (o *Object) put(name string, v dispatch.Value, byRef bool, r *Registry) *dispatch.InvocationError {
	h, isObj := v.ObjectHandle()
	if byRef && !isObj {
		return &dispatch.InvocationError{Code: CodeRefRequired, Message: "put-by-reference requires an object value"}
	}

	o.mu.Lock()
	old, hadOld := o.props[name]
	if isObj {
		r.AddRef(h)
		o.props[name] = dispatch.FromHandle(h)
	} else {
		o.props[name] = v
	}
	o.mu.Unlock()

	// Drop the reference held for the previous object value, if any.
	if hadOld {
		if oldH, wasObj := old.ObjectHandle(); wasObj {
			r.Release(oldH)
		}
	}
	return nil
}

func (o *Object) invoke(name string, args []dispatch.Value, r *Registry) (dispatch.Value, error) {
	o.mu.RLock()
	m, ok := o.methods[name]
	o.mu.RUnlock()
	if !ok {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNotCallable, Message: fmt.Sprintf("%q is not callable", name)}
	}
	v, err := m(args)
	if err != nil {
		// Typed dispatch errors pass through untouched; anything else
		// becomes a method fault.
		switch err.(type) {
		case *dispatch.InvocationError, *dispatch.UnknownMemberError, *dispatch.TypeMismatchError:
			return dispatch.Value{}, err
		default:
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeMethodFault, Message: err.Error()}
		}
	}
	return v, nil
}

func (o *Object) destroy(r *Registry) {
	o.mu.Lock()
	props := o.props
	o.props = make(map[string]dispatch.Value)
	o.mu.Unlock()

	for _, v := range props {
		if h, isObj := v.ObjectHandle(); isObj {
			r.Release(h)
		}
	}
}
