package store

import "github.com/zeebo/errs"

var (
	// Error is the class of generic storage engine failures.
	Error = errs.Class("store")

	// ErrReadOnly is returned for writes against a read-only store.
	ErrReadOnly = errs.Class("read-only store")

	// ErrNoTransaction is returned when a write needs an open transaction.
	ErrNoTransaction = errs.Class("no write transaction")

	// ErrLayoutMismatch is returned by strict validation when the physical
	// tables disagree with the requested layout.
	ErrLayoutMismatch = errs.Class("layout mismatch")

	// ErrMigrationRequired is returned when existing tables would change
	// without a schema version bump.
	ErrMigrationRequired = errs.Class("migration required")

	// ErrInvalidVersion is returned when the requested version is lower than
	// the stored one.
	ErrInvalidVersion = errs.Class("invalid schema version")

	// ErrRowNotFound is returned for operations on a row key that no longer
	// exists.
	ErrRowNotFound = errs.Class("row not found")
)
