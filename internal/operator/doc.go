// Package operator is the catalog of text-transformation operators.
//
// An operator Definition fixes a kind's port shape (named input and output
// slots), its default configuration and its pure Transform. The Registry maps
// kinds to definitions; Builtins returns the process-wide registry holding
// the seven built-in kinds, which is read-only once built.
//
// Transforms are pure: no I/O, deterministic output for deterministic input,
// and they never modify the inputs or config they receive. They signal
// failure by returning an error, never a sentinel output.
//
// The kind names and slot names are part of the graph contract:
//
//	textInput    out: text                 config: text
//	textDisplay  in:  text
//	base64       in:  input  out: output   config: mode (encode|decode)
//	hash         in:  input  out: output   config: algorithm (MD5|SHA1|SHA224|SHA256|SHA384|SHA512)
//	json         in:  input  out: output   config: mode (format|compress|escape|unescape)
//	regex        in:  input  out: output   config: pattern, flags
//	crypto       in:  input  out: output   config: mode (encrypt|decrypt), key
package operator
