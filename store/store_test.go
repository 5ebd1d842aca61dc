package store

import (
	"errors"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/chazu/latebind/dispatch"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "bags.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newRef(t *testing.T, st *Store) *dispatch.ObjectRef {
	t.Helper()
	h, err := st.NewObject()
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	return dispatch.NewObjectRef(st, h)
}

func TestScalarRoundTrip(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	defer ref.Release()

	cases := []struct {
		name string
		val  dispatch.Value
	}{
		{"count", dispatch.FromInt64(-12)},
		{"size", dispatch.FromUint64(4096)},
		{"ratio", dispatch.FromFloat64(0.625)},
		{"label", dispatch.FromString("héllo")},
		{"title", dispatch.FromWideString(utf16.Encode([]rune("wïde")))},
		{"ready", dispatch.FromBool(true)},
	}

	for _, c := range cases {
		if err := ref.Set(dispatch.Name(c.name), c.val); err != nil {
			t.Fatalf("Set %s: %v", c.name, err)
		}
	}
	for _, c := range cases {
		got, err := ref.Get(dispatch.Name(c.name))
		if err != nil {
			t.Fatalf("Get %s: %v", c.name, err)
		}
		if !got.Equal(c.val) {
			t.Errorf("%s: got %s, want %s", c.name, got, c.val)
		}
	}
}

func TestWideStringPersistsAsText(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	defer ref.Release()

	wide := dispatch.FromWideString(utf16.Encode([]rune("wïde")))
	if err := ref.Set(dispatch.Name("title"), wide); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := ref.Get(dispatch.Name("title"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Content survives, the narrow representation comes back.
	if got.Kind() != dispatch.KindString {
		t.Errorf("stored wide string reads back as %s, want string", got.Kind())
	}
	if !got.Equal(wide) {
		t.Errorf("title = %s, want %s", got, wide)
	}
}

func TestRootIsPinned(t *testing.T) {
	st := openTemp(t)
	root, err := st.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	ref := dispatch.NewObjectRef(st, root)
	if err := ref.Set(dispatch.Name("anchor"), dispatch.FromInt(1)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// An unbalanced release must not tear the root (and its graph) down.
	ref.Release()
	st.Release(root)
	n, err := st.Live()
	if err != nil {
		t.Fatalf("Live: %v", err)
	}
	if n != 1 {
		t.Fatalf("live rows after releasing the root = %d, want 1", n)
	}

	again, err := st.Root()
	if err != nil {
		t.Fatalf("Root after release: %v", err)
	}
	ref = dispatch.NewObjectRef(st, again)
	got, err := ref.Get(dispatch.Name("anchor"))
	if err != nil {
		t.Fatalf("Get after release: %v", err)
	}
	if n, _ := got.AsInt(); n != 1 {
		t.Errorf("anchor = %s, want 1", got)
	}
}

func TestUnwrittenPropertyReadsEmpty(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	defer ref.Release()

	// The bag is dynamic: any name resolves, and unset names are empty.
	v, err := ref.Get(dispatch.Name("neverSet"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Kind() != dispatch.KindEmpty {
		t.Errorf("unset property = %s, want empty", v)
	}
}

func TestOverwriteChangesKind(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	defer ref.Release()

	if err := ref.Set(dispatch.Name("x"), dispatch.FromInt(7)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := ref.Set(dispatch.Name("x"), dispatch.FromString("seven")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := ref.Get(dispatch.Name("x"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s, err := got.AsString(); err != nil || s != "seven" {
		t.Errorf("x = %s, want %q", got, "seven")
	}
}

func TestRemoveMethod(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	defer ref.Release()

	if err := ref.Set(dispatch.Name("doomed"), dispatch.FromInt(1)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	res, err := ref.Invoke(dispatch.Name("remove"), dispatch.FromString("doomed"))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed, _ := res.AsBool(); !removed {
		t.Errorf("remove(doomed) = %s, want true", res)
	}

	v, err := ref.Get(dispatch.Name("doomed"))
	if err != nil {
		t.Fatalf("Get after remove: %v", err)
	}
	if v.Kind() != dispatch.KindEmpty {
		t.Errorf("removed property = %s, want empty", v)
	}

	res, err = ref.Invoke(dispatch.Name("remove"), dispatch.FromString("doomed"))
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed, _ := res.AsBool(); removed {
		t.Errorf("remove of a missing property = %s, want false", res)
	}
}

func TestOnlyRemoveIsCallable(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	defer ref.Release()

	_, err := ref.Invoke(dispatch.Name("compact"))
	var ie *dispatch.InvocationError
	if !errors.As(err, &ie) || ie.Code != CodeNotCallable {
		t.Fatalf("Invoke(compact): %v, want code %d", err, CodeNotCallable)
	}
}

func TestPutRefRejectsScalar(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	defer ref.Release()

	err := ref.SetRef(dispatch.Name("link"), dispatch.FromInt(5))
	var ie *dispatch.InvocationError
	if !errors.As(err, &ie) || ie.Code != CodeRefRequired {
		t.Fatalf("SetRef(scalar): %v, want code %d", err, CodeRefRequired)
	}
}

func TestObjectLinkLifecycle(t *testing.T) {
	st := openTemp(t)

	parent := newRef(t, st)
	child := newRef(t, st)

	if err := child.Set(dispatch.Name("name"), dispatch.FromString("kid")); err != nil {
		t.Fatalf("Set name: %v", err)
	}
	if err := parent.SetRef(dispatch.Name("child"), dispatch.FromObject(child)); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
	child.Release()

	// The link alone keeps the child row alive.
	childRef, err := parent.GetRef(dispatch.Name("child"))
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	name, err := childRef.Get(dispatch.Name("name"))
	if err != nil {
		t.Fatalf("Get through link: %v", err)
	}
	if s, _ := name.AsString(); s != "kid" {
		t.Errorf("name = %q, want %q", s, "kid")
	}
	childRef.Release()

	// Dropping the parent cascades through the link.
	parent.Release()
	n, err := st.Live()
	if err != nil {
		t.Fatalf("Live: %v", err)
	}
	if n != 0 {
		t.Errorf("live rows = %d, want 0", n)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bags.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	root, err := st.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	ref := dispatch.NewObjectRef(st, root)
	if err := ref.Set(dispatch.Name("greeting"), dispatch.FromString("still here")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	root, err = st.Root()
	if err != nil {
		t.Fatalf("Root after reopen: %v", err)
	}
	ref = dispatch.NewObjectRef(st, root)
	got, err := ref.Get(dispatch.Name("greeting"))
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if s, _ := got.AsString(); s != "still here" {
		t.Errorf("greeting = %q, want %q", s, "still here")
	}
}

func TestDeadHandleFails(t *testing.T) {
	st := openTemp(t)
	ref := newRef(t, st)
	h := ref.Handle()
	ref.Release()

	_, err := st.ResolveName(h, "anything")
	var ie *dispatch.InvocationError
	if !errors.As(err, &ie) || ie.Code != CodeNoObject {
		t.Fatalf("ResolveName on dead handle: %v, want code %d", err, CodeNoObject)
	}
}
