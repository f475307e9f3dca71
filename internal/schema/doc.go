// Package schema provides the in-memory description of persisted object types.
//
// A [Schema] is an ordered set of [ObjectSchema] values. Each ObjectSchema names
// a class and lists its [Property] values in order. Properties carry a declared
// [PropertyType], optional and primary-key flags, the target class for
// relationship properties, and a column index that is only meaningful after the
// schema has been synchronized with a store.
//
// This package imports nothing internal. The store, query and realm packages all
// build on it.
//
// Key invariants:
//   - Class names are unique within a Schema
//   - At most one primary key per ObjectSchema; its type is Int or String
//   - Object properties are always optional, Array properties never are
//   - Column indices are -1 until bound, and are recomputed on every synchronization
package schema
