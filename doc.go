// Package jsnorm normalizes JSON documents against the `properties` section of
// a JSON Schema:
//
// - readOnly properties supplied by the caller are removed
// - absent properties that declare a default receive a copy of it
// - nested objects, homogeneous arrays and tuple arrays are walked recursively
// - absent nested objects are synthesized so their defaults surface; absent arrays are not
//
// Normalization never fails and never mutates its input. Decoding a raw payload
// (DecodePayload, NormalizeJSON) reports problems as Issues carrying a JSON
// Pointer, a code and a message.
//
// Design policy:
// - Keep only public APIs in the root package; put detailed implementations under internal/.
// - Schema document import lives in schemadoc/, schema storage in repository/,
//   HTTP integration in middleware/ and the CLI under cmd/jsnorm.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	props, _ := jsnorm.ParsePropertyMapJSON(schemaProperties)
//	plan := jsnorm.Compile(props)
//	out := plan.Normalize(payload)
//
//	res, err := jsnorm.NormalizeJSON(ctx, props, body, jsnorm.ParseOpt{MaxDepth: 64})
package jsnorm
