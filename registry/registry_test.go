package registry

import (
	"errors"
	"testing"

	"github.com/chazu/latebind/dispatch"
)

func TestGetScalarProperty(t *testing.T) {
	r := New()
	h := r.Add(NewObject().SetProp("length", dispatch.FromInt(3)))
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	v, err := ref.Get(dispatch.Name("length"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	n, err := v.AsInt()
	if err != nil {
		t.Fatalf("AsInt: %v", err)
	}
	if n != 3 {
		t.Errorf("length = %d, want 3", n)
	}
}

func TestUnknownMember(t *testing.T) {
	r := New()
	h := r.Add(NewObject())
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	_, err := ref.Get(dispatch.Name("missingProp"))
	var um *dispatch.UnknownMemberError
	if !errors.As(err, &um) {
		t.Fatalf("err = %v, want UnknownMemberError", err)
	}
}

func TestSetThenGet(t *testing.T) {
	r := New()
	h := r.Add(NewObject().SetProp("x", dispatch.Empty()))
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	want := dispatch.FromString("updated")
	if err := ref.Set(dispatch.Name("x"), want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := ref.Get(dispatch.Name("x"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("round trip: got %s, want %s", got, want)
	}
}

func TestSetNewNameFailsResolution(t *testing.T) {
	r := New()
	h := r.Add(NewObject())
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	// Strict host: members exist before they can be assigned.
	err := ref.Set(dispatch.Name("brandNew"), dispatch.FromInt(1))
	var um *dispatch.UnknownMemberError
	if !errors.As(err, &um) {
		t.Fatalf("Set on undefined member: %v, want UnknownMemberError", err)
	}
}

func TestMethodDifference(t *testing.T) {
	r := New()
	obj := NewObject().DefineMethod("difference", func(args []dispatch.Value) (dispatch.Value, error) {
		if len(args) != 2 {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadArgCount, Message: "want two arguments"}
		}
		a, err := args[0].AsInt64()
		if err != nil {
			return dispatch.Value{}, err
		}
		b, err := args[1].AsInt64()
		if err != nil {
			return dispatch.Value{}, err
		}
		return dispatch.FromInt64(a - b), nil
	})
	h := r.Add(obj)
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	v, err := ref.Invoke(dispatch.Name("difference"), dispatch.FromInt(3), dispatch.FromInt(4))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if n, _ := v.AsInt64(); n != -1 {
		t.Errorf("difference(3, 4) = %d, want -1", n)
	}
}

func TestZeroArgMethod(t *testing.T) {
	r := New()
	clicks := 0
	obj := NewObject().DefineMethod("onclick", func(args []dispatch.Value) (dispatch.Value, error) {
		clicks++
		return dispatch.Empty(), nil
	})
	h := r.Add(obj)
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	if _, err := ref.Invoke(dispatch.Name("onclick")); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
}

func TestCallKindMismatch(t *testing.T) {
	r := New()
	obj := NewObject().
		SetProp("x", dispatch.FromInt(1)).
		DefineMethod("m", func(args []dispatch.Value) (dispatch.Value, error) {
			return dispatch.Empty(), nil
		})
	h := r.Add(obj)
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	var ie *dispatch.InvocationError
	if _, err := ref.Invoke(dispatch.Name("x")); !errors.As(err, &ie) || ie.Code != CodeNotCallable {
		t.Errorf("Invoke on property: %v, want CodeNotCallable", err)
	}
	if _, err := ref.Get(dispatch.Name("m")); !errors.As(err, &ie) || ie.Code != CodeNotReadable {
		t.Errorf("Get on method: %v, want CodeNotReadable", err)
	}
}

func TestPutRefRejectsScalar(t *testing.T) {
	r := New()
	h := r.Add(NewObject().SetProp("x", dispatch.Empty()))
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	err := ref.SetRef(dispatch.Name("x"), dispatch.FromInt(5))
	var ie *dispatch.InvocationError
	if !errors.As(err, &ie) || ie.Code != CodeRefRequired {
		t.Errorf("SetRef scalar: %v, want CodeRefRequired", err)
	}
}

func TestObjectPropertyLifecycle(t *testing.T) {
	r := New()
	childHandle := r.Add(NewObject().SetProp("name", dispatch.FromString("kid")))
	parentHandle := r.Add(NewObject().SetProp("child", dispatch.Empty()))

	parent := dispatch.NewObjectRef(r, parentHandle)
	child := dispatch.NewObjectRef(r, childHandle)

	// Store the child as an object property; the parent takes its own ref.
	if err := parent.SetRef(dispatch.Name("child"), dispatch.FromObject(child)); err != nil {
		t.Fatalf("SetRef: %v", err)
	}

	// The original child ref can go away; the parent keeps it alive.
	child.Release()
	if r.Live() != 2 {
		t.Fatalf("live objects = %d, want 2", r.Live())
	}

	got, err := parent.GetRef(dispatch.Name("child"))
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	name, err := got.Get(dispatch.Name("name"))
	if err != nil {
		t.Fatalf("Get name: %v", err)
	}
	if s, _ := name.AsString(); s != "kid" {
		t.Errorf("name = %q, want %q", s, "kid")
	}
	got.Release()

	// Destroying the parent drops its property reference, which is the
	// child's last: both objects die.
	parent.Release()
	if r.Live() != 0 {
		t.Errorf("live objects after teardown = %d, want 0", r.Live())
	}
}

func TestOverwriteReleasesOldObject(t *testing.T) {
	r := New()
	first := r.Add(NewObject())
	second := r.Add(NewObject())
	holder := r.Add(NewObject().SetProp("slot", dispatch.Empty()))
	ref := dispatch.NewObjectRef(r, holder)

	firstRef := dispatch.NewObjectRef(r, first)
	secondRef := dispatch.NewObjectRef(r, second)

	if err := ref.SetRef(dispatch.Name("slot"), dispatch.FromObject(firstRef)); err != nil {
		t.Fatalf("SetRef first: %v", err)
	}
	firstRef.Release()
	if r.Live() != 3 {
		t.Fatalf("live = %d, want 3", r.Live())
	}

	// Overwriting the slot releases the holder's reference to first.
	if err := ref.SetRef(dispatch.Name("slot"), dispatch.FromObject(secondRef)); err != nil {
		t.Fatalf("SetRef second: %v", err)
	}
	secondRef.Release()
	if r.Live() != 2 {
		t.Errorf("live after overwrite = %d, want 2 (first destroyed)", r.Live())
	}

	ref.Release()
	if r.Live() != 0 {
		t.Errorf("live after teardown = %d, want 0", r.Live())
	}
}

func TestNumericKeySkipsResolution(t *testing.T) {
	r := New()
	h := r.Add(NewObject().SetProp("length", dispatch.FromInt(3)))
	ref := dispatch.NewObjectRef(r, h)
	defer ref.Release()

	id, err := dispatch.ResolveKey(r, h, dispatch.Name("length"))
	if err != nil {
		t.Fatalf("ResolveKey: %v", err)
	}
	v, err := ref.Get(dispatch.ID(id))
	if err != nil {
		t.Fatalf("Get by id: %v", err)
	}
	if n, _ := v.AsInt64(); n != 3 {
		t.Errorf("Get by id = %v, want 3", v)
	}
}
