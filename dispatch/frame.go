package dispatch

// ---------------------------------------------------------------------------
// Frame: packaged arguments + call kind for one invocation
// ---------------------------------------------------------------------------

// MaxArgs is the positional argument ceiling for a single call. The frame's
// capacity is fixed; widening it is an interface change, not a tweak.
const MaxArgs = 9

// Frame packages an ordered argument list and a call kind into the shape
// the invocation primitive requires. Arguments are packed last-to-first:
// the primitive's argument-array convention is reversed relative to the
// caller's left-to-right order, and the packing must preserve that exactly.
//
// A Frame is transient and scoped to one call.
type Frame struct {
	kind CallKind
	args [MaxArgs]Value
	n    int
}

// NewFrame builds a frame for the given call kind, packing args in the
// reversed convention order. Fails with ErrTooManyArgs beyond MaxArgs.
func NewFrame(kind CallKind, args ...Value) (*Frame, error) {
	if len(args) > MaxArgs {
		return nil, ErrTooManyArgs
	}
	f := &Frame{kind: kind, n: len(args)}
	for i, a := range args {
		f.args[len(args)-1-i] = a
	}
	return f, nil
}

// Kind returns the frame's call kind.
func (f *Frame) Kind() CallKind { return f.kind }

// Len returns the number of packed arguments.
func (f *Frame) Len() int { return f.n }

// Packed returns the argument array in convention order (last argument
// first), ready to hand to Collaborator.Invoke.
func (f *Frame) Packed() []Value {
	return f.args[:f.n]
}

// Positional returns a packed argument array restored to the caller's
// left-to-right order. Collaborator implementations use this to observe
// argument N in position N.
func Positional(packed []Value) []Value {
	out := make([]Value, len(packed))
	for i, a := range packed {
		out[len(packed)-1-i] = a
	}
	return out
}
