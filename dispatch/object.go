package dispatch

import "sync/atomic"

// ---------------------------------------------------------------------------
// ObjectRef: the user-facing handle to one late-bound object
// ---------------------------------------------------------------------------

// ObjectRef wraps a single counted reference to a late-bound object and
// exposes the accessor family on it. Go has no copy constructors, so the
// reference-count protocol is explicit: NewObjectRef adopts an existing
// reference, Clone acquires another, and Release drops exactly one. The
// underlying object is destroyed by the collaborator when the last
// reference is released.
//
// The zero ObjectRef is empty; every operation on it (and on a released
// ref) fails with ErrInvalidReference.
//
// An ObjectRef performs no locking around calls. If the collaborator allows
// concurrent access to the object, concurrent calls through copies of the
// same reference are fine; the wrapper adds nothing beyond the atomic count.
type ObjectRef struct {
	collab   Collaborator
	target   Handle
	released atomic.Bool
}

// NewObjectRef wraps a handle, adopting one counted reference already held
// by the caller (from construction, a prior Get, or a prior Invoke).
func NewObjectRef(c Collaborator, h Handle) *ObjectRef {
	return &ObjectRef{collab: c, target: h}
}

// Valid returns true if the reference is non-empty and not yet released.
func (r *ObjectRef) Valid() bool {
	return r != nil && r.collab != nil && r.target != 0 && !r.released.Load()
}

// Handle returns the wrapped handle. Zero for an empty reference.
func (r *ObjectRef) Handle() Handle {
	if r == nil {
		return 0
	}
	return r.target
}

// Clone acquires an additional counted reference and returns an independent
// ObjectRef for it. Each clone must be released on its own.
func (r *ObjectRef) Clone() (*ObjectRef, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	r.collab.AddRef(r.target)
	return NewObjectRef(r.collab, r.target), nil
}

// Release drops this reference's count. Idempotent: releasing twice drops
// the count once.
func (r *ObjectRef) Release() {
	if r == nil || r.collab == nil || r.target == 0 {
		return
	}
	if r.released.CompareAndSwap(false, true) {
		r.collab.Release(r.target)
	}
}

func (r *ObjectRef) guard() error {
	if !r.Valid() {
		return ErrInvalidReference
	}
	return nil
}

// ---------------------------------------------------------------------------
// Accessor family
// ---------------------------------------------------------------------------

// call runs the full per-call sequence: resolve the key, build the frame,
// invoke, bind object results to this reference's collaborator. Every
// failure aborts immediately; nothing is retried.
func (r *ObjectRef) call(key MemberKey, kind CallKind, args ...Value) (Value, error) {
	if err := r.guard(); err != nil {
		return Value{}, err
	}
	member, err := ResolveKey(r.collab, r.target, key)
	if err != nil {
		return Value{}, err
	}
	frame, err := NewFrame(kind, args...)
	if err != nil {
		return Value{}, err
	}
	result, err := r.collab.Invoke(r.target, member, frame.Kind(), frame.Packed())
	if err != nil {
		return Value{}, err
	}
	return result.bindCollaborator(r.collab), nil
}

// Get reads the property named by key and returns its value. An object
// result owns one counted reference; release it via the value or hand it
// to Object().
func (r *ObjectRef) Get(key MemberKey) (Value, error) {
	return r.call(key, PropertyGet)
}

// GetRef reads an object-valued property and returns it as a new reference,
// releasing the intermediate value. Convenience for chained traversal:
//
//	child, err := root.GetRef(dispatch.Name("child"))
func (r *ObjectRef) GetRef(key MemberKey) (*ObjectRef, error) {
	v, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	ref, err := v.Object()
	v.Release()
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// Set writes value to the property named by key with assignment-by-value
// semantics: the target stores its own copy of scalar and string data, or
// takes its own reference to an object value per the protocol's rules.
func (r *ObjectRef) Set(key MemberKey, value Value) error {
	res, err := r.call(key, PropertyPut, value)
	if err != nil {
		return err
	}
	res.Release()
	return nil
}

// SetRef writes value to the property named by key with put-by-reference
// semantics. Defined behavior only when value holds an object reference;
// anything else is forwarded as-is and left to the collaborator to accept
// or reject. No value-kind validation happens here.
func (r *ObjectRef) SetRef(key MemberKey, value Value) error {
	res, err := r.call(key, PropertyPutRef, value)
	if err != nil {
		return err
	}
	res.Release()
	return nil
}

// Invoke calls the method named by key with 0 to 9 positional arguments and
// returns its result. Fails with ErrTooManyArgs beyond the frame ceiling.
func (r *ObjectRef) Invoke(key MemberKey, args ...Value) (Value, error) {
	return r.call(key, CallMethod, args...)
}
