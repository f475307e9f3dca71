// Package store is the SQLite-backed storage engine underneath the realm layer.
//
// Every persisted class owns one table named class_<ClassName>. Each table has
// two internal columns followed by the user columns in physical order:
//   - _key: INTEGER PRIMARY KEY AUTOINCREMENT, the stable row key. Keys are
//     never reused after deletion, so a stale handle cannot silently rebind.
//   - _ndx: the dense row index 0..n-1. Removal moves the last row into the
//     hole (swap-and-truncate), so _ndx order is the table's row order.
//
// Column kinds and link targets live in _rowbind_columns; the schema version
// lives in _rowbind_meta. Both are updated in the same transaction as the DDL
// they describe, so a cancelled migration leaves no trace.
//
// # Transactions
//
// The store is single-writer. Begin opens the one write transaction; all reads
// and writes go through it while it is open. Savepoint/RollbackTo nest inside
// it so a failed operation can undo its own partial writes without cancelling
// the caller's transaction.
//
// # Database Configuration
//
//   - WAL mode: readers see the last committed state during a write
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one connection: SQLite allows a single writer anyway
package store
