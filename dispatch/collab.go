package dispatch

// ---------------------------------------------------------------------------
// Collaborator: the consumed late-bound object protocol
// ---------------------------------------------------------------------------

// Handle is an opaque reference to a late-bound object, minted and
// interpreted only by the Collaborator that owns it. The zero handle is
// never a valid object.
type Handle uint64

// MemberID is the numeric identifier of a member, as required by the
// invocation primitive. Textual keys resolve to a MemberID before every
// call; numeric keys are used as-is.
type MemberID int32

// CallKind selects the invocation flavor for a member call.
type CallKind uint8

const (
	CallMethod CallKind = iota
	PropertyGet
	PropertyPut
	PropertyPutRef
)

// String returns a short name for the call kind.
func (k CallKind) String() string {
	switch k {
	case CallMethod:
		return "method"
	case PropertyGet:
		return "get"
	case PropertyPut:
		return "put"
	case PropertyPutRef:
		return "putref"
	default:
		return "unknown"
	}
}

// Collaborator is the late-bound object protocol this package drives.
// Implementations host the actual objects (in-process, persistent, or
// behind a wire protocol); the dispatch layer only resolves keys, packs
// frames, and interprets results.
//
// Invoke receives the frame's packed argument array: arguments appear
// last-to-first, as the invocation convention requires. Use Positional
// to recover the caller's left-to-right order.
//
// An object-kind Value returned from Invoke transfers one counted
// reference to the caller. Object-kind Values passed in args are
// borrowed; an implementation that stores one must AddRef it.
//
// All operations block until complete. There is no cancellation and no
// timeout: a hung collaborator hangs the caller.
type Collaborator interface {
	// ResolveName maps a member name on the target object to its numeric
	// identifier, or fails with UnknownMemberError.
	ResolveName(target Handle, name string) (MemberID, error)

	// Invoke performs a member call of the given kind and returns its
	// result, or fails with an InvocationError.
	Invoke(target Handle, member MemberID, kind CallKind, packedArgs []Value) (Value, error)

	// AddRef takes an additional counted reference on the target object.
	AddRef(target Handle)

	// Release drops one counted reference; the collaborator destroys the
	// object when its count reaches zero.
	Release(target Handle)
}
