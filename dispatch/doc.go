// Package dispatch implements ergonomic access to late-bound objects:
// objects whose members are resolved by name or numeric identifier at
// call time and invoked through a generic calling convention.
//
// This package contains:
//   - Tagged-union Value representation with native conversions
//   - Member keys (narrow text, wide text, numeric identifier)
//   - Key resolution against a Collaborator
//   - Invocation frames with the packed argument convention
//   - Reference-counted object references with Get/Set/SetRef/Invoke
//
// The underlying late-bound protocol is consumed through the Collaborator
// interface; this package never implements it, only drives it.
package dispatch
