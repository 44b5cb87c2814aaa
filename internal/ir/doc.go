// Package ir provides the encoded value tree used by the JSON adapter,
// the change journal and the conformance harness.
//
// This package contains value types and their serialization only. It
// imports nothing internal. Every encoded payload that leaves an
// observation session through the JSON adapter is an IRValue.
//
// Key design constraints:
//   - Integers stay int64 end to end; only numbers with a fraction or an
//     exponent become IRFloat
//   - NaN and infinities are rejected at every boundary
//   - Object keys are serialized in RFC 8785 order (UTF-16 code units)
//   - Canonical JSON (MarshalCanonical) is the only form used for hashing
package ir
