// Package value provides the value model that flows along graph edges.
//
// Every node output, node input and node configuration entry is a Value.
// Values are immutable by convention: transforms receive values and return
// new ones, they never modify what they were given.
//
// Key design constraints:
//   - Undefined is a real value ("no value yet"), distinct from JSON null
//   - Numbers keep their literal text, no float rounding on the way through
//   - Equality is exact: no Unicode or number normalization (Equal)
//   - Canonical JSON (MarshalCanonical) only feeds fingerprints
//   - This package imports nothing internal
package value
