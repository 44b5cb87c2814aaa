// Package adapter renders change trees into serialization formats.
//
// An Adapter encodes the payloads of a change (Replace values and Append
// fragments) into a format's value model. Paths and operation kinds are
// never touched. Three adapters are provided:
//   - JSON: ir.IRValue trees, the form stored in the change journal
//   - YAML: *yaml.Node trees
//   - CUE: cue.Value, plus schema validation of the encoded value
//
// JSON and YAML payloads can be applied back onto encoded values with
// IRApplier and NodeApplier; both implement change.Applier, so they also
// drive change.Squash.
//
// Wire form (MarshalChange, canonical JSON):
//
//	{"changes":[{"op":"replace","path":["bar","baz"],"value":43},
//	            {"op":"append","path":["qux"],"value":" world"}],
//	 "op":"batch","path":[]}
package adapter
