// Package change defines the portable change tree produced by an
// observation session.
//
// This package contains the data model only: paths, operations, changes,
// the squash tree and the Applier contract. It imports nothing internal,
// so every other package can depend on it.
//
// A change tree has three operation kinds:
//   - Replace: the whole sub-value at the path was replaced
//   - Append: a string or sequence grew by a suffix; only the suffix is carried
//   - Batch: independent child changes, each path relative to the batch path
//
// Public paths always read root-to-leaf. A Batch never has fewer than two
// children; a single child is collapsed into a direct change with the
// joined path.
package change
