// Package registry hosts late-bound objects in process memory.
//
// A Registry implements dispatch.Collaborator: it mints handles, counts
// references, resolves member names to per-object identifiers, and routes
// invocations to hosted objects. Hosted objects come in two flavors: the
// map-backed Object (named properties plus method funcs) and reflection
// wrappers over plain Go structs.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/chazu/latebind/dispatch"
)

// Invocation failure codes reported by this collaborator.
const (
	CodeNoObject    int32 = 1 // handle does not name a live object
	CodeNoMember    int32 = 2 // member id was never issued for this object
	CodeBadArgCount int32 = 3
	CodeNotCallable int32 = 4 // method call on a property
	CodeNotReadable int32 = 5 // property read on a method
	CodeRefRequired int32 = 6 // put-by-reference with a non-object value
	CodeMethodFault int32 = 7 // hosted method returned a plain error
	CodeBadCallKind int32 = 8
	CodeBadValue    int32 = 9 // argument or property value not convertible
)

// hostedObject is what an entry dispatches into. Implementations return
// object-valued property reads borrowed; the registry takes the counted
// reference on the way out. Method results are returned already owned.
type hostedObject interface {
	hasMember(name string) bool
	get(name string) (dispatch.Value, *dispatch.InvocationError)
	put(name string, v dispatch.Value, byRef bool, r *Registry) *dispatch.InvocationError
	invoke(name string, args []dispatch.Value, r *Registry) (dispatch.Value, error)
	destroy(r *Registry)
}

// memberTable issues stable numeric identifiers for one object's members.
type memberTable struct {
	mu    sync.Mutex
	ids   map[string]dispatch.MemberID
	names map[dispatch.MemberID]string
	next  dispatch.MemberID
}

func newMemberTable() *memberTable {
	return &memberTable{
		ids:   make(map[string]dispatch.MemberID),
		names: make(map[dispatch.MemberID]string),
	}
}

func (t *memberTable) id(name string) dispatch.MemberID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[name]; ok {
		return id
	}
	t.next++
	t.ids[name] = t.next
	t.names[t.next] = name
	return t.next
}

func (t *memberTable) name(id dispatch.MemberID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.names[id]
	return n, ok
}

type entry struct {
	obj     hostedObject
	members *memberTable
	refs    atomic.Int32
}

// Registry is an in-memory late-bound object host.
type Registry struct {
	mu      sync.RWMutex
	entries map[dispatch.Handle]*entry

	nextHandle atomic.Uint64

	// Instrumentation for lifecycle tests and leak hunting.
	acquires atomic.Int64
	releases atomic.Int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[dispatch.Handle]*entry),
	}
}

// add registers a hosted object with one outstanding reference, as a
// freshly constructed object has.
func (r *Registry) add(obj hostedObject) dispatch.Handle {
	h := dispatch.Handle(r.nextHandle.Add(1))
	e := &entry{obj: obj, members: newMemberTable()}
	e.refs.Store(1)
	r.mu.Lock()
	r.entries[h] = e
	r.mu.Unlock()
	return h
}

// Add registers a map-backed object and returns its handle. The caller owns
// the initial reference.
func (r *Registry) Add(obj *Object) dispatch.Handle {
	return r.add(obj)
}

// Ref acquires a new counted reference on the handle and wraps it. Returns
// an error for dead handles.
func (r *Registry) Ref(h dispatch.Handle) (*dispatch.ObjectRef, error) {
	r.mu.RLock()
	_, ok := r.entries[h]
	r.mu.RUnlock()
	if !ok {
		return nil, dispatch.ErrInvalidReference
	}
	r.AddRef(h)
	return dispatch.NewObjectRef(r, h), nil
}

// ObjectResult wraps a handle as an owned object result: the counted
// reference is acquired here and travels with the value. Hosted methods use
// this to return objects.
func (r *Registry) ObjectResult(h dispatch.Handle) dispatch.Value {
	r.AddRef(h)
	return dispatch.FromHandle(h)
}

func (r *Registry) lookup(h dispatch.Handle) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[h]
}

// Live returns the number of live objects.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Acquires returns the total number of AddRef calls observed.
func (r *Registry) Acquires() int64 { return r.acquires.Load() }

// Releases returns the total number of Release calls observed.
func (r *Registry) Releases() int64 { return r.releases.Load() }

// ---------------------------------------------------------------------------
// dispatch.Collaborator
// ---------------------------------------------------------------------------

// ResolveName maps a member name to this object's identifier for it.
// Resolution is strict: a name neither stored nor callable on the target
// fails with UnknownMemberError.
func (r *Registry) ResolveName(target dispatch.Handle, name string) (dispatch.MemberID, error) {
	e := r.lookup(target)
	if e == nil {
		return 0, &dispatch.InvocationError{Code: CodeNoObject, Message: "no such object"}
	}
	if !e.obj.hasMember(name) {
		return 0, &dispatch.UnknownMemberError{Name: name}
	}
	return e.members.id(name), nil
}

// Invoke routes a member call to the hosted object. The packed argument
// array arrives in convention order and is restored to caller order here.
func (r *Registry) Invoke(target dispatch.Handle, member dispatch.MemberID, kind dispatch.CallKind, packed []dispatch.Value) (dispatch.Value, error) {
	e := r.lookup(target)
	if e == nil {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNoObject, Message: "no such object"}
	}
	name, ok := e.members.name(member)
	if !ok {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNoMember, Message: "unresolved member identifier"}
	}
	args := dispatch.Positional(packed)

	switch kind {
	case dispatch.PropertyGet:
		if len(args) != 0 {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadArgCount, Message: "property get takes no arguments"}
		}
		v, ierr := e.obj.get(name)
		if ierr != nil {
			return dispatch.Value{}, ierr
		}
		if h, isObj := v.ObjectHandle(); isObj {
			// Property reads transfer a counted reference with the result.
			return r.ObjectResult(h), nil
		}
		return v, nil

	case dispatch.PropertyPut, dispatch.PropertyPutRef:
		if len(args) != 1 {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadArgCount, Message: "property put takes one argument"}
		}
		if ierr := e.obj.put(name, args[0], kind == dispatch.PropertyPutRef, r); ierr != nil {
			return dispatch.Value{}, ierr
		}
		return dispatch.Empty(), nil

	case dispatch.CallMethod:
		return e.obj.invoke(name, args, r)

	default:
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadCallKind, Message: "unsupported call kind"}
	}
}

// AddRef increments the handle's reference count. Dead handles are ignored;
// the count still records the acquire for instrumentation.
func (r *Registry) AddRef(target dispatch.Handle) {
	r.acquires.Add(1)
	if e := r.lookup(target); e != nil {
		e.refs.Add(1)
	}
}

// Release decrements the handle's reference count, destroying the object
// when it reaches zero. Destruction releases every object-valued property
// the object holds, so an acyclic graph tears down transitively. Cyclic
// graphs are the caller's to break, as the protocol's counting rules say.
func (r *Registry) Release(target dispatch.Handle) {
	r.releases.Add(1)
	e := r.lookup(target)
	if e == nil {
		return
	}
	if e.refs.Add(-1) > 0 {
		return
	}
	r.mu.Lock()
	delete(r.entries, target)
	r.mu.Unlock()
	e.obj.destroy(r)
}
