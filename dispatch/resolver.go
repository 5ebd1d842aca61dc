package dispatch

import "errors"

// ---------------------------------------------------------------------------
// Key resolution
// ---------------------------------------------------------------------------

var errInvalidKey = errors.New("dispatch: invalid member key")

// ResolveKey resolves a member key against the target object into the
// numeric identifier the invocation primitive requires.
//
// A numeric key resolves without touching the collaborator. A textual key
// (narrow or wide) asks the collaborator to map the name; wide names are
// decoded to UTF-8 first, so two keys carrying the same text resolve
// identically regardless of encoding.
//
// Resolution is never memoized: every textual call pays the lookup. This
// mirrors the invocation protocol's own contract and keeps the resolver
// stateless; callers wanting speed cache the MemberID themselves.
func ResolveKey(c Collaborator, target Handle, key MemberKey) (MemberID, error) {
	if key.IsID() {
		return key.id, nil
	}
	text, ok := key.Text()
	if !ok {
		return 0, errInvalidKey
	}
	return c.ResolveName(target, text)
}
