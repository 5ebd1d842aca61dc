package dispatch

import (
	"fmt"
	"unicode/utf16"
)

// ---------------------------------------------------------------------------
// MemberKey: names a property or method on a late-bound object
// ---------------------------------------------------------------------------

type keyKind uint8

const (
	keyInvalid keyKind = iota
	keyName
	keyWideName
	keyID
)

// MemberKey identifies a member by narrow text, wide text, or numeric
// identifier. Keys are immutable; construct one per call site with Name,
// WideName, or ID. The zero MemberKey is invalid and fails resolution.
type MemberKey struct {
	kind keyKind
	name string
	wide []uint16
	id   MemberID
}

// Name creates a key from a narrow (UTF-8) member name.
func Name(s string) MemberKey {
	return MemberKey{kind: keyName, name: s}
}

// WideName creates a key from a wide (UTF-16) member name.
func WideName(w []uint16) MemberKey {
	return MemberKey{kind: keyWideName, wide: w}
}

// ID creates a key from a numeric member identifier. Numeric keys skip name
// resolution entirely, which makes them the fastest key kind; callers doing
// repeated calls should resolve once and reuse the identifier.
func ID(id MemberID) MemberKey {
	return MemberKey{kind: keyID, id: id}
}

// IsID returns true if the key carries a numeric identifier.
func (k MemberKey) IsID() bool { return k.kind == keyID }

// Text returns the key's name as UTF-8, decoding wide keys. Returns "" and
// false for numeric and invalid keys.
func (k MemberKey) Text() (string, bool) {
	switch k.kind {
	case keyName:
		return k.name, true
	case keyWideName:
		return string(utf16.Decode(k.wide)), true
	default:
		return "", false
	}
}

// String renders the key for error messages and logs.
func (k MemberKey) String() string {
	switch k.kind {
	case keyName:
		return k.name
	case keyWideName:
		return string(utf16.Decode(k.wide))
	case keyID:
		return fmt.Sprintf("#%d", k.id)
	default:
		return "<invalid key>"
	}
}
