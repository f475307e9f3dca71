package realm

import "github.com/zeebo/errs"

var (
	// Error is the class of failures that have no more specific kind, such as
	// using a closed realm.
	Error = errs.Class("realm")

	// ErrNotInWriteTransaction is returned by write-path operations called
	// without an open write transaction, or while another goroutine is inside
	// one.
	ErrNotInWriteTransaction = errs.Class("not in write transaction")

	// ErrAlreadyPersisted is returned when attaching an object that belongs to
	// a different realm.
	ErrAlreadyPersisted = errs.Class("object already persisted")

	// ErrInvalidatedObject is returned for any use of a deleted or otherwise
	// invalidated object.
	ErrInvalidatedObject = errs.Class("object invalidated")

	// ErrObservedObjectAttach is returned when attaching an object that has
	// registered observers.
	ErrObservedObjectAttach = errs.Class("cannot attach observed object")

	// ErrSchemaValidation is returned when the physical layout disagrees with
	// the declared schema and cannot be migrated.
	ErrSchemaValidation = errs.Class("schema validation failed")

	// ErrMigrationCallback wraps an error returned by a migration function.
	ErrMigrationCallback = errs.Class("migration failed")

	// ErrMissingPrimaryKey is returned by Find on a class without a primary key.
	ErrMissingPrimaryKey = errs.Class("missing primary key")

	// ErrInvalidPrimaryKeyValue is returned when a key value does not match
	// the declared primary-key type.
	ErrInvalidPrimaryKeyValue = errs.Class("invalid primary key value")

	// ErrTypeMismatch is returned when a value does not satisfy its property.
	ErrTypeMismatch = errs.Class("type mismatch")

	// ErrMissingRequiredValue is returned when a new row has no value for a
	// required property.
	ErrMissingRequiredValue = errs.Class("missing required value")

	// ErrIndexOutOfBounds is returned for collection indexes outside the
	// collection.
	ErrIndexOutOfBounds = errs.Class("index out of bounds")

	// ErrElementTypeMismatch is returned when inserting an object of the wrong
	// class into a collection.
	ErrElementTypeMismatch = errs.Class("element type mismatch")

	// ErrUnsupportedOnStandalone is returned by query derivation on a
	// collection that is not persisted.
	ErrUnsupportedOnStandalone = errs.Class("requires a persisted collection")

	// ErrUnknownClass is returned for class names missing from the schema.
	ErrUnknownClass = errs.Class("unknown class")

	// ErrWrongRealm is returned when an object owned by another realm is used
	// where an object of this realm is required.
	ErrWrongRealm = errs.Class("object belongs to another realm")
)
