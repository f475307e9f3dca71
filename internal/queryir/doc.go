// Package queryir provides the predicate intermediate representation used to
// filter and order object collections.
//
// Predicates are built from a small sealed set of node types and checked
// against an ObjectSchema before compilation. The SQL backend lives in
// package querysql:
//
//	[Predicate + []SortDescriptor] → [querysql] → WHERE / ORDER BY fragments
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	case StringMatch:
//	case In:
//	case And:
//	case Or:
//	case Not:
//	}
//
// VALUES:
//
// Literal values are plain Go values in the same normalized form the binding
// layer stores: int64 (int is accepted), float64, bool, string, []byte,
// time.Time, or nil. Comparing with nil means IS NULL / IS NOT NULL.
//
// Relationship properties can only be tested for null. Array properties are
// not queryable.
package queryir
